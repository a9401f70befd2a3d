package model

import (
	"strings"

	"scamwatch/internal/store"
)

// Well-known ids of the singleton documents in the config collection.
const (
	KeywordsID       int64 = 0
	ForbiddenNamesID int64 = 1
)

// Keywords holds the upper-cased scam keyword lists per language.
type Keywords struct {
	FR []string `yaml:"fr" json:"fr"`
	EN []string `yaml:"en" json:"en"`
	DE []string `yaml:"de" json:"de"`
}

// All returns every keyword across languages in fr, en, de order.
func (k *Keywords) All() []string {
	out := make([]string, 0, len(k.FR)+len(k.EN)+len(k.DE))
	out = append(out, k.FR...)
	out = append(out, k.EN...)
	return append(out, k.DE...)
}

// CollectionName implements store.Record.
func (k *Keywords) CollectionName() string { return ConfigCollection }

// RecordID implements store.Record.
func (k *Keywords) RecordID() int64 { return KeywordsID }

// Document implements store.Record.
func (k *Keywords) Document() (store.Document, error) {
	doc, _ := k.UpdateDocument()
	doc["id"] = KeywordsID
	return doc, nil
}

// UpdateDocument implements store.Record.
func (k *Keywords) UpdateDocument() (store.Document, error) {
	return store.Document{
		"fr": upperAll(k.FR),
		"en": upperAll(k.EN),
		"de": upperAll(k.DE),
	}, nil
}

// KeywordsFromDocument decodes the keyword document.
func KeywordsFromDocument(doc store.Document) *Keywords {
	return &Keywords{
		FR: doc.Strings("fr"),
		EN: doc.Strings("en"),
		DE: doc.Strings("de"),
	}
}

// ForbiddenNames holds name fragments that flag new users.
type ForbiddenNames struct {
	Names []string `yaml:"names" json:"names"`
}

// CollectionName implements store.Record.
func (f *ForbiddenNames) CollectionName() string { return ConfigCollection }

// RecordID implements store.Record.
func (f *ForbiddenNames) RecordID() int64 { return ForbiddenNamesID }

// Document implements store.Record.
func (f *ForbiddenNames) Document() (store.Document, error) {
	return store.Document{"id": ForbiddenNamesID, "names": upperAll(f.Names)}, nil
}

// UpdateDocument implements store.Record.
func (f *ForbiddenNames) UpdateDocument() (store.Document, error) {
	return store.Document{"names": upperAll(f.Names)}, nil
}

// ForbiddenNamesFromDocument decodes the forbidden-name document.
func ForbiddenNamesFromDocument(doc store.Document) *ForbiddenNames {
	return &ForbiddenNames{Names: doc.Strings("names")}
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
