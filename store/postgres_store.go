package store

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/Luismorlan/postmux/model"
	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/utils"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresRecordStore struct {
	db *gorm.DB
}

func NewPostgresRecordStore(db *gorm.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// NewPostgresRecordStoreFromEnv connects with the DB_* env and migrates the
// record table.
func NewPostgresRecordStoreFromEnv() (*PostgresRecordStore, error) {
	db, err := utils.GetDBConnection()
	if err != nil {
		return nil, errors.Wrap(err, "fail to connect to postgres")
	}
	if err := utils.DatabaseSetupAndMigration(db); err != nil {
		return nil, errors.Wrap(err, "fail to migrate record table")
	}
	return NewPostgresRecordStore(db), nil
}

func (s *PostgresRecordStore) Save(ctx context.Context, record normalizer.Record) error {
	row, err := rowFromRecord(record)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	return errors.Wrapf(err, "fail to upsert record %s", row.Id)
}

func (s *PostgresRecordStore) Get(ctx context.Context, id string) (normalizer.Record, error) {
	var row model.RecordRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to read record %s", id)
	}
	return recordFromRow(row)
}

func (s *PostgresRecordStore) Range(ctx context.Context, start, end float64) ([]normalizer.Record, error) {
	var rows []model.RecordRow
	err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "fail to query records")
	}
	res := make([]normalizer.Record, 0, len(rows))
	for _, row := range rows {
		record, err := recordFromRow(row)
		if err != nil {
			return nil, err
		}
		res = append(res, record)
	}
	return res, nil
}

func rowFromRecord(record normalizer.Record) (model.RecordRow, error) {
	epoch, err := recordEpoch(record)
	if err != nil {
		return model.RecordRow{}, err
	}
	document, err := json.Marshal(record)
	if err != nil {
		return model.RecordRow{}, errors.Wrapf(err, "fail to encode record %s", record.ID())
	}
	return model.RecordRow{
		Id:        record.ID(),
		Timestamp: epoch,
		Document:  datatypes.JSON(document),
	}, nil
}

func recordFromRow(row model.RecordRow) (normalizer.Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(row.Document))
	decoder.UseNumber()
	record := normalizer.Record{}
	if err := decoder.Decode(&record); err != nil {
		return nil, errors.Wrapf(err, "fail to decode record %s", row.Id)
	}
	return record, nil
}
