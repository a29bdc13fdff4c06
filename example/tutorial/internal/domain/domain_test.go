package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/domain"
)

func TestNewPlayerYears(t *testing.T) {
	p := domain.Player{ID: "AbduKa00", LastName: "Abdul-Jabbar", FirstName: "Karim", Position: "rb", BirthYear: 1974, DebutYear: 1996}
	py := domain.NewPlayerYears(p, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 28, py.YearsExperience)
	assert.Equal(t, "Abdul-Jabbar", py.LastName)
	assert.Equal(t, 1996, py.DebutYear)
}

func TestNewAccount(t *testing.T) {
	ordered := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	settled := ordered.Add(48 * time.Hour)
	a := domain.NewAccount(domain.Order{ID: 7, OrderItem: "pen", Price: 1200, OrderDate: ordered}, settled)

	assert.Equal(t, domain.Account{ID: 7, OrderItem: "pen", Price: 1200, OrderDate: ordered, AccountDate: settled}, a)
}

func TestNewPlayerRecord(t *testing.T) {
	r := domain.NewPlayerRecord(domain.Player{ID: "AbraDa00", Position: "wr", BirthYear: 1945, DebutYear: 1967})
	assert.Equal(t, int32(1945), r.BirthYear)
	assert.Equal(t, int32(1967), r.DebutYear)
	assert.Equal(t, "wr", r.Position)
}
