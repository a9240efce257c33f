// Package source downloads the regulator's monthly daily-quote archives.
//
// Archives are published as inf_diario_fi_YYYYMM.zip under a single base URL:
//   - Production: https://dados.cvm.gov.br/dados/FI/DOC/INF_DIARIO/DADOS
//
// Each archive holds one ';'-separated ISO-8859-1 CSV. A month that has not
// been published yet answers 404 and is reported as ErrMonthUnavailable.
package source
