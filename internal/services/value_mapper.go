package services

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/yukikurage/monday-task-gateway/internal/models"
	"github.com/yukikurage/monday-task-gateway/internal/monday"
)

// ownerTitlePattern picks the column meant for task ownership among
// several of the same type.
var ownerTitlePattern = regexp.MustCompile(`(?i)\b(owner|assignee|person)\b`)

// placeholderLabels are tried, in order, when an owner has no matching
// dropdown label. No label is ever invented.
var placeholderLabels = []string{"unassigned", "tbd", "unknown", "other"}

// ValueMapper turns a task request into the column_values payload for a
// subitem creation, driven by the target board's runtime column schema.
// Column types without a handler are ignored rather than rejected.
type ValueMapper struct {
	mu     sync.Mutex
	labels map[string][]string
}

func NewValueMapper() *ValueMapper {
	return &ValueMapper{labels: make(map[string][]string)}
}

// MapValues builds {column_id: value} for the given schema and task.
// Owner resolution scans the provided rosters in order; when no roster
// entry matches, the owner stays free text only and the people column
// is left unset.
func (m *ValueMapper) MapValues(columns []monday.Column, task models.TaskRequest, rosters ...[]monday.Person) map[string]interface{} {
	values := make(map[string]interface{})

	peopleCol := findOwnerishColumn(columns, "people")
	ownerTextCol := findOwnerishColumn(columns, "text")
	ownerDropdownCol := findOwnerishColumn(columns, "dropdown")
	dateCol := firstColumnOfType(columns, "date")
	statusCol := firstColumnOfType(columns, "status")
	longTextCol := firstColumnOfType(columns, "long_text")

	if dateCol != nil && task.DueDate != "" {
		values[dateCol.ID] = map[string]interface{}{"date": task.DueDate}
	}

	if statusCol != nil && task.Status != nil {
		if task.Status.Index != nil {
			values[statusCol.ID] = map[string]interface{}{"index": *task.Status.Index}
		} else {
			values[statusCol.ID] = map[string]interface{}{"label": task.Status.Label}
		}
	}

	if longTextCol != nil {
		var bits []string
		if task.Owner != "" {
			bits = append(bits, "Owner: "+task.Owner)
		}
		if task.DueDate != "" {
			bits = append(bits, "Due: "+task.DueDate)
		}
		values[longTextCol.ID] = map[string]interface{}{"text": strings.Join(bits, "\n")}
	}

	owner := strings.TrimSpace(task.Owner)
	if owner == "" {
		return values
	}

	// Text columns take the raw string, not a JSON object
	if ownerTextCol != nil {
		values[ownerTextCol.ID] = owner
	}

	if ownerDropdownCol != nil {
		if label, ok := m.matchDropdownLabel(ownerDropdownCol, owner); ok {
			values[ownerDropdownCol.ID] = map[string]interface{}{"labels": []string{label}}
		}
	}

	if peopleCol != nil {
		if uid, ok := ResolveOwner(owner, rosters...); ok {
			values[peopleCol.ID] = map[string]interface{}{
				"personsAndTeams": []map[string]interface{}{
					{"id": uid, "kind": "person"},
				},
			}
		}
	}

	return values
}

// ResolveOwner maps an owner display string to a person id across the
// union of the given rosters. Precedence, first match wins: exact
// case-insensitive name or email, name prefix, name substring, then
// email local-part equality. It never fabricates an identity.
func ResolveOwner(owner string, rosters ...[]monday.Person) (int64, bool) {
	target := norm(owner)
	if target == "" {
		return 0, false
	}

	var people []monday.Person
	seen := make(map[int64]struct{})
	for _, roster := range rosters {
		for _, p := range roster {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			people = append(people, p)
		}
	}

	for _, p := range people {
		if norm(p.Name) == target || (p.Email != "" && norm(p.Email) == target) {
			return p.ID, true
		}
	}
	for _, p := range people {
		if strings.HasPrefix(norm(p.Name), target) {
			return p.ID, true
		}
	}
	for _, p := range people {
		if strings.Contains(norm(p.Name), target) {
			return p.ID, true
		}
	}
	if strings.Contains(target, "@") {
		local := strings.SplitN(target, "@", 2)[0]
		for _, p := range people {
			if p.Email != "" && strings.SplitN(norm(p.Email), "@", 2)[0] == local {
				return p.ID, true
			}
		}
	}
	return 0, false
}

// matchDropdownLabel finds the label to set for an owner: an exact
// case-insensitive match, else the first present placeholder label.
// Labels are parsed from settings once per column and cached.
func (m *ValueMapper) matchDropdownLabel(col *monday.Column, owner string) (string, bool) {
	m.mu.Lock()
	labels, ok := m.labels[col.ID]
	if !ok {
		labels = dropdownLabels(col.Settings)
		m.labels[col.ID] = labels
	}
	m.mu.Unlock()

	if len(labels) == 0 {
		return "", false
	}

	target := norm(owner)
	for _, l := range labels {
		if norm(l) == target {
			return l, true
		}
	}
	for _, placeholder := range placeholderLabels {
		for _, l := range labels {
			if norm(l) == placeholder {
				return l, true
			}
		}
	}
	return "", false
}

// dropdownLabels extracts label names from a dropdown column's settings
// payload, accepting the legacy shapes: a list of strings, a list of
// {name}/{label} objects, or a numerically keyed map.
func dropdownLabels(settings string) []string {
	if settings == "" {
		return nil
	}
	var parsed struct {
		Labels json.RawMessage `json:"labels"`
	}
	if err := json.Unmarshal([]byte(settings), &parsed); err != nil || len(parsed.Labels) == 0 {
		return nil
	}

	var asList []interface{}
	if err := json.Unmarshal(parsed.Labels, &asList); err == nil {
		var out []string
		for _, entry := range asList {
			switch v := entry.(type) {
			case string:
				out = append(out, v)
			case map[string]interface{}:
				if name, ok := v["name"].(string); ok {
					out = append(out, name)
				} else if label, ok := v["label"].(string); ok {
					out = append(out, label)
				}
			}
		}
		return out
	}

	var asMap map[string]string
	if err := json.Unmarshal(parsed.Labels, &asMap); err == nil {
		keys := make([]string, 0, len(asMap))
		for k := range asMap {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, aErr := strconv.Atoi(keys[i])
			b, bErr := strconv.Atoi(keys[j])
			if aErr == nil && bErr == nil {
				return a < b
			}
			return keys[i] < keys[j]
		})
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, asMap[k])
		}
		return out
	}

	return nil
}

// findOwnerishColumn prefers a column of the wanted type whose title
// mentions owner/assignee/person, falling back to the first column of
// that type.
func findOwnerishColumn(columns []monday.Column, wantType string) *monday.Column {
	var first *monday.Column
	for i := range columns {
		if columns[i].Type != wantType {
			continue
		}
		if ownerTitlePattern.MatchString(columns[i].Title) {
			return &columns[i]
		}
		if first == nil {
			first = &columns[i]
		}
	}
	return first
}

func firstColumnOfType(columns []monday.Column, wantType string) *monday.Column {
	for i := range columns {
		if columns[i].Type == wantType {
			return &columns[i]
		}
	}
	return nil
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
