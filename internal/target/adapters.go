package target

import (
	"fmt"
)

// Record is the adapter output: political data normalized to Target fields.
type Record struct {
	Title    string
	Name     string
	District string
	Number   string
	Location string
	Offices  []Office
}

// Adapter translates one political-data namespace's raw cache document into
// a Record. One adapter per key prefix.
type Adapter interface {
	Adapt(doc map[string]any) (Record, error)
}

// AdapterFor selects the adapter for a key prefix. Unknown prefixes get the
// passthrough adapter, which expects documents already in Target shape.
func AdapterFor(prefix string) Adapter {
	switch prefix {
	case "us:bioguide":
		return bioguideAdapter{}
	case "us_state:openstates":
		return openStatesAdapter{}
	case "us_state:governor":
		return governorAdapter{}
	default:
		return passthroughAdapter{}
	}
}

// bioguideAdapter maps congressional legislator documents keyed by bioguide id.
type bioguideAdapter struct{}

func (bioguideAdapter) Adapt(doc map[string]any) (Record, error) {
	first, last := str(doc, "first_name"), str(doc, "last_name")
	if first == "" && last == "" {
		return Record{}, fmt.Errorf("target: bioguide document missing name")
	}
	return Record{
		Name:     joinName(first, last),
		Title:    str(doc, "title"),
		Number:   str(doc, "phone"),
		District: str(doc, "district"),
		Location: str(doc, "state"),
		Offices:  offices(doc),
	}, nil
}

// openStatesAdapter maps OpenStates person documents for state legislators.
type openStatesAdapter struct{}

func (openStatesAdapter) Adapt(doc map[string]any) (Record, error) {
	name := str(doc, "name")
	if name == "" {
		return Record{}, fmt.Errorf("target: openstates document missing name")
	}
	rec := Record{
		Name:     name,
		District: str(doc, "district"),
		Offices:  offices(doc),
	}
	if role, ok := doc["current_role"].(map[string]any); ok {
		switch str(role, "org_classification") {
		case "upper":
			rec.Title = "Senator"
		case "lower":
			rec.Title = "Representative"
		}
		if rec.District == "" {
			rec.District = str(role, "district")
		}
	}
	// OpenStates carries the voice number on the first office.
	if rec.Number == "" && len(rec.Offices) > 0 {
		rec.Number = rec.Offices[0].Number
	}
	return rec, nil
}

// governorAdapter maps state executive documents keyed by state code.
type governorAdapter struct{}

func (governorAdapter) Adapt(doc map[string]any) (Record, error) {
	first, last := str(doc, "first_name"), str(doc, "last_name")
	if first == "" && last == "" {
		return Record{}, fmt.Errorf("target: governor document missing name")
	}
	return Record{
		Name:     joinName(first, last),
		Title:    str(doc, "title"),
		Number:   str(doc, "phone"),
		Location: str(doc, "state"),
		Offices:  offices(doc),
	}, nil
}

// passthroughAdapter reads documents already shaped like a Target.
type passthroughAdapter struct{}

func (passthroughAdapter) Adapt(doc map[string]any) (Record, error) {
	name := str(doc, "name")
	if name == "" {
		return Record{}, fmt.Errorf("target: document missing name")
	}
	return Record{
		Name:     name,
		Title:    str(doc, "title"),
		Number:   str(doc, "number"),
		District: str(doc, "district"),
		Location: str(doc, "location"),
		Offices:  offices(doc),
	}, nil
}

func offices(doc map[string]any) []Office {
	raw, ok := doc["offices"].([]any)
	if !ok {
		return nil
	}
	out := make([]Office, 0, len(raw))
	for _, v := range raw {
		o, ok := v.(map[string]any)
		if !ok {
			continue
		}
		num := str(o, "phone")
		if num == "" {
			num = str(o, "voice")
		}
		out = append(out, Office{
			UID:     str(o, "uid"),
			Name:    str(o, "name"),
			Address: str(o, "address"),
			Type:    str(o, "type"),
			Number:  num,
		})
	}
	return out
}

func str(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
