// Package helpers предоставляет вспомогательные функции общего назначения.
package helpers

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUUID создает новый случайный UUID.
func CreateUUID() string {
	return uuid.New().String()
}

// ParseUUID проверяет, является ли строка валидным UUID.
func ParseUUID(s string) error {
	_, err := uuid.Parse(s)
	return err
}

// FailureID формирует идентификатор записи об ошибке вида component_testCaseID_unixnano.
// Если идентификатор тест-кейса пуст, используется случайный UUID.
func FailureID(component, testCaseID string, ts time.Time) string {
	if testCaseID == "" {
		testCaseID = CreateUUID()
	}
	return fmt.Sprintf("%s_%s_%d", component, testCaseID, ts.UnixNano())
}
