// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/errors"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
)

// Interface abstracts the underlying database implementation and defines the
// operations available on the diagnosis history.
type Interface interface {
	Open() error
	Save(record *Record) error
	Get(id uint) (Record, error)
	Delete(id uint) error
	Close() error
	GetAllRecords() ([]Record, error)
	GetLastRecords(numRecords int) ([]Record, error)
	SearchRecords(query string, sortAscending bool, limit, offset int) ([]Record, error)
	CountByClass(class string) (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

var (
	storeLogger     *slog.Logger
	storeLoggerOnce sync.Once
)

func getLogger() *slog.Logger {
	storeLoggerOnce.Do(func() {
		storeLogger = logging.ServiceLogger("datastore")
	})
	return storeLogger
}

// New creates a datastore instance based on the provided configuration.
// Returns nil when no database output is enabled.
func New(settings *conf.Settings) Interface {
	if settings.Output.SQLite.Enabled {
		return &SQLiteStore{
			Settings: settings,
		}
	}
	return nil
}

// Save stores a record and its ranked predictions as a single transaction.
func (ds *DataStore) Save(record *Record) error {
	if ds.DB == nil {
		return errors.NewStd("database connection is not initialized")
	}

	tx := ds.DB.Begin()
	if tx.Error != nil {
		return errors.New(fmt.Errorf("starting transaction: %w", tx.Error)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(record).Error; err != nil {
		tx.Rollback()
		return errors.New(fmt.Errorf("saving record: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("request_id", record.RequestID).
			Build()
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New(fmt.Errorf("committing transaction: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	getLogger().Debug("Record saved",
		"request_id", record.RequestID,
		"class", record.PredictedClass,
		"confidence", record.Confidence)
	return nil
}

// Get retrieves a record by its database ID, including ranked predictions.
func (ds *DataStore) Get(id uint) (Record, error) {
	var record Record
	if err := ds.DB.Preload("Top3").First(&record, id).Error; err != nil {
		return Record{}, fmt.Errorf("getting record with id %d: %w", id, err)
	}
	return record, nil
}

// Delete removes a record and its associated predictions.
func (ds *DataStore) Delete(id uint) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	if err := tx.Where("record_id = ?", id).Delete(&TopEntry{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting predictions for record %d: %w", id, err)
	}
	if err := tx.Delete(&Record{}, id).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting record %d: %w", id, err)
	}
	return tx.Commit().Error
}

// GetAllRecords retrieves the full history, most recent first.
func (ds *DataStore) GetAllRecords() ([]Record, error) {
	var records []Record
	if err := ds.DB.Preload("Top3").Order("begin_time DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("getting all records: %w", err)
	}
	return records, nil
}

// GetLastRecords retrieves the most recent diagnoses.
func (ds *DataStore) GetLastRecords(numRecords int) ([]Record, error) {
	var records []Record
	if err := ds.DB.Preload("Top3").Order("begin_time DESC").Limit(numRecords).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("getting last %d records: %w", numRecords, err)
	}
	return records, nil
}

// SearchRecords looks up records by predicted class or source filename.
func (ds *DataStore) SearchRecords(query string, sortAscending bool, limit, offset int) ([]Record, error) {
	sortOrder := "begin_time DESC"
	if sortAscending {
		sortOrder = "begin_time ASC"
	}

	var records []Record
	err := ds.DB.Preload("Top3").
		Where("predicted_class LIKE ? OR filename LIKE ?", "%"+query+"%", "%"+query+"%").
		Order(sortOrder).
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("searching records for %q: %w", query, err)
	}
	return records, nil
}

// CountByClass returns how many stored diagnoses predicted the given class.
func (ds *DataStore) CountByClass(class string) (int64, error) {
	var count int64
	if err := ds.DB.Model(&Record{}).Where("predicted_class = ?", class).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting records for class %q: %w", class, err)
	}
	return count, nil
}

// createGormLogger configures GORM logging over the package service logger.
func createGormLogger() logger.Interface {
	return logger.New(
		slogAdapter{getLogger()},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, args ...any) {
	a.logger.Info(fmt.Sprintf(format, args...))
}

// performAutoMigration runs GORM auto-migration for the history schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Record{}, &TopEntry{}); err != nil {
		return errors.New(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}

	if debug {
		getLogger().Debug("Database initialized", "db_type", dbType, "connection", connectionInfo)
	}
	return nil
}
