package domain

import "testing"

type address struct {
	City string `json:"city"`
	Zip  string `json:"zip"`
}

type person struct {
	Name    string   `json:"name"`
	Age     int      `json:"age"`
	Address *address `json:"address"`
}

type money struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

type lineItem struct {
	SKU   string             `json:"sku"`
	Price ValueObject[money] `json:"price"`
	Tags  []string           `json:"tags,omitempty"`
}

var (
	sampleKind = MustDefineKind[person]("SampleEntity")
	itemKind   = MustDefineKind[lineItem]("LineItem")
)

func johnDoe() *person {
	return &person{
		Name: "John Doe",
		Age:  25,
		Address: &address{
			City: "Example City",
			Zip:  "12345",
		},
	}
}

func mustEntity[T any](t *testing.T, kind *Kind[T], data *T, id ...ID) *Entity[T] {
	t.Helper()
	e, err := NewEntity(kind, data, id...)
	if err != nil {
		t.Fatalf("new %s: %v", kind.Name(), err)
	}
	return e
}
