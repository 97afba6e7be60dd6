package store

import (
	"sort"
)

// Projector rebuilds records from raw store rows.
type Projector struct {
	schema KeySchema
	codec  Codec
}

// NewProjector returns a Projector for schema.
func NewProjector(schema KeySchema) Projector {
	return Projector{schema: schema, codec: NewCodec(schema)}
}

// Project converts one row into a record. Key fields come first, typed per
// the schema; the remaining attributes follow in name order, decoded with
// Codec.Decode.
func (p Projector) Project(row Attributes) (Record, error) {
	rec := make(Record, 0, len(row))
	for _, def := range p.schema.keyDefs() {
		av, ok := row[def.Name]
		if !ok {
			return nil, &ValidationError{Field: def.Name, Err: ErrMissingKey}
		}
		v, err := p.codec.Decode(av, def.Name)
		if err != nil {
			return nil, err
		}
		rec = append(rec, Field{Name: def.Name, Value: v})
	}

	names := make([]string, 0, len(row))
	for name := range row {
		if !p.schema.IsKey(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		v, _ := p.codec.Decode(row[name], name)
		rec = append(rec, Field{Name: name, Value: v})
	}
	return rec, nil
}

// ProjectAll projects rows in order, dropping rows whose keys are missing or
// malformed. It returns the records kept and the number dropped.
func (p Projector) ProjectAll(rows []Attributes) ([]Record, int) {
	records := make([]Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, err := p.Project(row)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}
