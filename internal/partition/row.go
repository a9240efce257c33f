package partition

import (
	"time"

	"github.com/rickgao/fund-data/internal/model"
)

// quoteRow is the on-disk Parquet layout of a QuoteRecord.
type quoteRow struct {
	EntityKey        string   `parquet:"name=entity_key, type=BYTE_ARRAY, convertedtype=UTF8"`
	AsOfDate         int32    `parquet:"name=as_of_date, type=INT32, convertedtype=DATE"`
	QuoteValue       *float64 `parquet:"name=quote_value, type=DOUBLE, repetitiontype=OPTIONAL"`
	NetAssets        *float64 `parquet:"name=net_assets, type=DOUBLE, repetitiontype=OPTIONAL"`
	NetSubscriptions *float64 `parquet:"name=net_subscriptions, type=DOUBLE, repetitiontype=OPTIONAL"`
	NetRedemptions   *float64 `parquet:"name=net_redemptions, type=DOUBLE, repetitiontype=OPTIONAL"`
	HolderCount      *int64   `parquet:"name=holder_count, type=INT64, repetitiontype=OPTIONAL"`
}

const secondsPerDay = 24 * 60 * 60

func toRow(r model.QuoteRecord) quoteRow {
	return quoteRow{
		EntityKey:        r.EntityKey,
		AsOfDate:         int32(model.Date(r.AsOf).Unix() / secondsPerDay),
		QuoteValue:       r.QuoteValue,
		NetAssets:        r.NetAssets,
		NetSubscriptions: r.NetSubscriptions,
		NetRedemptions:   r.NetRedemptions,
		HolderCount:      r.HolderCount,
	}
}

func fromRow(r quoteRow) model.QuoteRecord {
	return model.QuoteRecord{
		EntityKey:        r.EntityKey,
		AsOf:             time.Unix(int64(r.AsOfDate)*secondsPerDay, 0).UTC(),
		QuoteValue:       r.QuoteValue,
		NetAssets:        r.NetAssets,
		NetSubscriptions: r.NetSubscriptions,
		NetRedemptions:   r.NetRedemptions,
		HolderCount:      r.HolderCount,
	}
}
