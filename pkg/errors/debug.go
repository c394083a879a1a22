package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	DriverCode       string `json:"driver_code,omitempty"`
	DriverConstraint string `json:"driver_constraint,omitempty"`
	DriverTable      string `json:"driver_table,omitempty"`
	DriverDetail     string `json:"driver_detail,omitempty"`
	DriverMessage    string `json:"driver_message,omitempty"`
}

// Dump flattens an error chain and any storage driver detail for structured logs.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		d.DriverCode = sqliteErr.ExtendedCode.Error()
		d.DriverMessage = sqliteErr.Error()
		return d
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		d.DriverCode = pgErr.Code
		d.DriverConstraint = pgErr.ConstraintName
		d.DriverTable = pgErr.TableName
		d.DriverDetail = pgErr.Detail
		d.DriverMessage = pgErr.Message
		return d
	}

	return d
}

// IsStorageFull reports whether a driver error signals the disk or database is full.
func IsStorageFull(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrFull
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 53100 disk_full
		return pgErr.Code == "53100"
	}
	return false
}
