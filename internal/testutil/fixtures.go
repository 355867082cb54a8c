// Package testutil holds document fixtures and deterministic id sources
// shared by package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"
)

// Status is an enum member: a named integer with a String method.
type Status int

const (
	StatusDraft Status = iota
	StatusActive
	StatusArchived
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusArchived:
		return "Archived"
	default:
		return "Draft"
	}
}

// Person exercises every data type code, a nested struct, a collection of
// primitives and a collection of structs.
type Person struct {
	Id       int64
	Name     string
	Email    string `structdb:"unique"`
	Score    int
	Rating   float64
	IsActive bool
	Born     time.Time
	Ref      uuid.UUID
	Status   Status
	Bio      string `structdb:"text"`
	Tags     []string
	Items    []Item
	Address  *Address
	Notes    string `structdb:"noindex"`
	Ignored  string `structdb:"-"`

	secret string
}

// Item is a collection element of Person.
type Item struct {
	Value int
	Name  string
}

// Address is a nested member of Person.
type Address struct {
	City string
	Zip  string
}

// Order is guid keyed and nests collections two levels deep.
type Order struct {
	Id       uuid.UUID
	Customer string
	Lines    []Line
}

// Line is an Order collection element.
type Line struct {
	Sku   string
	Qty   int
	Parts []Part
}

// Part is a Line collection element.
type Part struct {
	Code string
}

// Label is string keyed.
type Label struct {
	LabelId string
	Text    string `structdb:"unique"`
}

// NewPerson returns a Person with every indexed member populated.
func NewPerson(name string, score int) *Person {
	return &Person{
		Name:     name,
		Email:    name + "@example.com",
		Score:    score,
		Rating:   float64(score) / 10,
		IsActive: score%2 == 0,
		Born:     time.Date(1990, 1, 2, 3, 4, 5, 0, time.UTC),
		Ref:      Guid(uint64(score) + 1000),
		Status:   StatusActive,
		Bio:      "bio of " + name,
		Tags:     []string{"a", "b"},
		Items:    []Item{{Value: score, Name: "first"}, {Value: score + 1, Name: "second"}},
		Address:  &Address{City: "Oslo", Zip: "0150"},
	}
}
