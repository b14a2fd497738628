package db

import (
	"fmt"

	"gorm.io/gorm"
)

// ResetSequence makes the next autoincrement id of table equal to last+1.
// It must run inside the caller's transaction.
func ResetSequence(tx *gorm.DB, table string, last int64) error {
	switch tx.Dialector.Name() {
	case "sqlite":
		if err := tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table).Error; err != nil {
			return fmt.Errorf("clear sqlite sequence: %w", err)
		}
		if err := tx.Exec("INSERT INTO sqlite_sequence (name, seq) VALUES (?, ?)", table, last).Error; err != nil {
			return fmt.Errorf("set sqlite sequence: %w", err)
		}
		return nil
	case "postgres":
		if err := tx.Exec("SELECT setval(pg_get_serial_sequence(?, 'id'), ?, true)", table, last).Error; err != nil {
			return fmt.Errorf("set postgres sequence: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("sequence reset not supported for dialect %q", tx.Dialector.Name())
	}
}
