package storage

import (
	"errors"
	"testing"
)

func TestMatchesStringifiesColumnValues(t *testing.T) {
	rec := &VersionRecord{
		ID:               5,
		SchemaMetadataID: 12,
		Name:             "user",
		Version:          3,
		Fingerprint:      "abc",
	}

	cases := []struct {
		filters []Filter
		want    bool
	}{
		{nil, true},
		{[]Filter{{ColumnSchemaMetadataID, "12"}}, true},
		{[]Filter{{ColumnSchemaMetadataID, "12"}, {ColumnVersion, "3"}}, true},
		{[]Filter{{ColumnSchemaMetadataID, "13"}}, false},
		{[]Filter{{ColumnFingerprint, "abc"}, {ColumnName, "other"}}, false},
	}
	for _, tc := range cases {
		got, err := Matches(rec, tc.filters)
		if err != nil {
			t.Fatalf("Matches(%v): %v", tc.filters, err)
		}
		if got != tc.want {
			t.Errorf("Matches(%v) = %v, want %v", tc.filters, got, tc.want)
		}
	}
}

func TestMatchesBooleanColumns(t *testing.T) {
	rec := &SerDesRecord{ID: 1, Name: "ser", ClassName: "c", FileID: "f", IsSerializer: true}

	got, err := Matches(rec, []Filter{{"isSerializer", "true"}})
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if !got {
		t.Error("expected boolean column to stringify as 'true'")
	}
}

func TestDecodeRecordUnknownNamespace(t *testing.T) {
	if _, err := DecodeRecord("no_such_namespace", []byte(`{}`)); !errors.Is(err, ErrUnknownNamespace) {
		t.Errorf("expected ErrUnknownNamespace, got %v", err)
	}
}

func TestMappingRecordKey(t *testing.T) {
	rec := &MappingRecord{SchemaMetadataID: 4, SerDesID: 9}
	key := rec.Key()
	if key.Value != "4:9" {
		t.Errorf("expected composite key 4:9, got %q", key.Value)
	}
}
