package fakesdb

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
)

// store keeps records per table. Records are plain maps carrying their
// "table:id" under "id".
type store struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]any
}

func newStore() *store {
	return &store{tables: make(map[string]map[string]map[string]any)}
}

// splitThing splits "table:id". The id is empty for a whole table.
func splitThing(thing string) (table, id string) {
	table, id, _ = strings.Cut(thing, ":")
	return table, id
}

func newID() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
}

func (s *store) put(table, id string, content map[string]any) map[string]any {
	if id == "" {
		id = newID()
	}

	rec := make(map[string]any, len(content)+1)
	for k, v := range content {
		rec[k] = v
	}
	rec["id"] = table + ":" + id

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[table]
	if !ok {
		t = make(map[string]map[string]any)
		s.tables[table] = t
	}
	t[id] = rec
	return rec
}

func (s *store) create(table, id string, content map[string]any) (map[string]any, error) {
	if id != "" {
		s.mu.Lock()
		_, exists := s.tables[table][id]
		s.mu.Unlock()
		if exists {
			return nil, fmt.Errorf("Database record `%s:%s` already exists", table, id)
		}
	}
	return s.put(table, id, content), nil
}

func (s *store) get(table, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[table][id]
	return rec, ok
}

// all returns the records of table ordered by id.
func (s *store) all(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.tables[table]))
	for id := range s.tables[table] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	recs := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, s.tables[table][id])
	}
	return recs
}

func (s *store) delete(table, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tables[table][id]
	delete(s.tables[table], id)
	return rec, ok
}

func (s *store) deleteAll(table string) []map[string]any {
	recs := s.all(table)
	s.mu.Lock()
	delete(s.tables, table)
	s.mu.Unlock()
	return recs
}

// merge applies content as an RFC 7386 merge patch.
func (s *store) merge(table, id string, content any) (map[string]any, error) {
	return s.modify(table, id, func(doc []byte) ([]byte, error) {
		p, err := json.Marshal(content)
		if err != nil {
			return nil, err
		}
		return jsonpatch.MergePatch(doc, p)
	})
}

// patch applies an RFC 6902 patch.
func (s *store) patch(table, id string, ops any) (map[string]any, error) {
	return s.modify(table, id, func(doc []byte) ([]byte, error) {
		raw, err := json.Marshal(ops)
		if err != nil {
			return nil, err
		}
		p, err := jsonpatch.DecodePatch(raw)
		if err != nil {
			return nil, err
		}
		return p.Apply(doc)
	})
}

func (s *store) modify(table, id string, fn func(doc []byte) ([]byte, error)) (map[string]any, error) {
	rec, ok := s.get(table, id)
	if !ok {
		rec = map[string]any{}
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	out, err := fn(doc)
	if err != nil {
		return nil, err
	}

	v, err := decodeJSON(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	content, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record content must be an object, got %T", v)
	}
	return s.put(table, id, content), nil
}

// dump renders every record as one JSON line per record.
func (s *store) dump() []byte {
	s.mu.Lock()
	tables := make([]string, 0, len(s.tables))
	for t := range s.tables {
		tables = append(tables, t)
	}
	s.mu.Unlock()
	sort.Strings(tables)

	var b strings.Builder
	b.WriteString("-- fakesdb export\n")
	for _, t := range tables {
		for _, rec := range s.all(t) {
			line, _ := json.Marshal(rec)
			b.Write(line)
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

// apply runs a record method from either transport and notifies live
// queries of the changes it made.
//
//nolint:gocyclo
func (s *Server) apply(method, table, id string, data any) ([]map[string]any, error) {
	var (
		recs   []map[string]any
		action string
	)

	each := func(fn func(id string) (map[string]any, error)) error {
		ids := []string{id}
		if id == "" {
			ids = ids[:0]
			for _, rec := range s.store.all(table) {
				_, rid := splitThing(rec["id"].(string))
				ids = append(ids, rid)
			}
		}
		for _, rid := range ids {
			rec, err := fn(rid)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	}

	switch method {
	case "select":
		if id == "" {
			return s.store.all(table), nil
		}
		if rec, ok := s.store.get(table, id); ok {
			return []map[string]any{rec}, nil
		}
		return []map[string]any{}, nil

	case "create":
		content, err := toMap(data)
		if err != nil {
			return nil, err
		}
		rec, err := s.store.create(table, id, content)
		if err != nil {
			return nil, err
		}
		recs, action = []map[string]any{rec}, createAction

	case "update":
		content, err := toMap(data)
		if err != nil {
			return nil, err
		}
		action = updateAction
		if err := each(func(rid string) (map[string]any, error) {
			return s.store.put(table, rid, content), nil
		}); err != nil {
			return nil, err
		}

	case "merge":
		action = updateAction
		if err := each(func(rid string) (map[string]any, error) {
			return s.store.merge(table, rid, data)
		}); err != nil {
			return nil, err
		}

	case "patch":
		action = updateAction
		if err := each(func(rid string) (map[string]any, error) {
			return s.store.patch(table, rid, data)
		}); err != nil {
			return nil, err
		}

	case "delete":
		action = deleteAction
		if id == "" {
			recs = s.store.deleteAll(table)
		} else if rec, ok := s.store.delete(table, id); ok {
			recs = []map[string]any{rec}
		}

	default:
		return nil, fmt.Errorf("unknown method %s", method)
	}

	if recs == nil {
		recs = []map[string]any{}
	}
	for _, rec := range recs {
		s.notify(table, action, rec)
	}
	return recs, nil
}

// toMap turns decoded request content into a record body.
func toMap(data any) (map[string]any, error) {
	switch d := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return d, nil
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		v, err := decodeJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record content must be an object, got %T", v)
		}
		return m, nil
	}
}

// decodeJSON decodes one JSON value with whole numbers as int64, so records
// that went through JSON still encode their integers as integers in CBOR.
func decodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v, extra any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value: %v", err)
	}
	return integers(v), nil
}

func integers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = integers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = integers(e)
		}
		return x
	default:
		return v
	}
}
