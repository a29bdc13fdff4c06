// Package domain holds the records read and written by the tutorial jobs.
package domain

import "time"

// Player is one line of Players.csv.
type Player struct {
	ID        string
	LastName  string
	FirstName string
	Position  string
	BirthYear int
	DebutYear int
}

// PlayerYears is a Player with the number of seasons since the debut.
type PlayerYears struct {
	ID              string
	LastName        string
	FirstName       string
	Position        string
	BirthYear       int
	DebutYear       int
	YearsExperience int
}

// NewPlayerYears computes the experience of p as of now.
func NewPlayerYears(p Player, now time.Time) PlayerYears {
	return PlayerYears{
		ID:              p.ID,
		LastName:        p.LastName,
		FirstName:       p.FirstName,
		Position:        p.Position,
		BirthYear:       p.BirthYear,
		DebutYear:       p.DebutYear,
		YearsExperience: now.Year() - p.DebutYear,
	}
}

// PlayerRecord is the Parquet row of a Player.
type PlayerRecord struct {
	ID        string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	LastName  string `parquet:"name=last_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	FirstName string `parquet:"name=first_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Position  string `parquet:"name=position, type=BYTE_ARRAY, convertedtype=UTF8"`
	BirthYear int32  `parquet:"name=birth_year, type=INT32"`
	DebutYear int32  `parquet:"name=debut_year, type=INT32"`
}

// NewPlayerRecord converts p to its Parquet row.
func NewPlayerRecord(p Player) PlayerRecord {
	return PlayerRecord{
		ID:        p.ID,
		LastName:  p.LastName,
		FirstName: p.FirstName,
		Position:  p.Position,
		BirthYear: int32(p.BirthYear),
		DebutYear: int32(p.DebutYear),
	}
}
