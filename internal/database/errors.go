package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jimlawless/whereami"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/e"
)

// Largura fixa para que a comparação de texto no SQLite respeite a ordem temporal
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// persistErr marca o erro como falha de persistência, com o local da chamada
func persistErr(err error) error {
	return fmt.Errorf("%s: %w: %w", whereami.WhereAmI(2), e.ErrPersistence, err)
}

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", e.ErrProductNotFound, id)
}

func encodeTargets(targets []models.NotificationTarget) (string, error) {
	if len(targets) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(targets)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeTargets(raw string) ([]models.NotificationTarget, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var targets []models.NotificationTarget
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, err
	}
	return targets, nil
}
