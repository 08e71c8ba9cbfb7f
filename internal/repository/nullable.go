package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgreSQLのエラーコード。
const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列値を取り出す。NULLの場合は空文字列。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// isInvalidTextRepresentation はUUID列に不正な文字列を渡した場合などの型変換エラーかを判定する。
func isInvalidTextRepresentation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == invalidTextRepresentation
}
