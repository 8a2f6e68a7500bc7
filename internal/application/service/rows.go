package service

import (
	"github.com/hashicorp/go-multierror"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
)

// CleanRows converts source rows into records, dropping every row that cannot be converted.
// The returned error lists the reason for each dropped row and is nil when none were dropped.
func CleanRows(rows []entity.RawRow) ([]entity.RateRecord, error) {
	records := make([]entity.RateRecord, 0, len(rows))

	var result *multierror.Error
	for _, row := range rows {
		record, err := row.Record()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		records = append(records, record)
	}

	return records, result.ErrorOrNil()
}
