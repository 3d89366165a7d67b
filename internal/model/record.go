// internal/model/record.go
package model

import "fmt"

// 필드 이름 (inventory API 응답 그대로)
const (
	FieldID        = "id"
	FieldHosts     = "hosts"
	FieldClusterID = "cluster_id"
	FieldTimestamp = "timestamp"
)

// Record
// ------------------------------------------------------------
// inventory API 에서 받은 레코드 하나 (cluster / host / event /
// component versions). 스키마 검증은 하지 않으므로 JSON 객체를
// 그대로 map 으로 들고 다닌다.
//
// 사이클마다 새로 만들어지고, store 호출에 넘긴 뒤에는 변경하지 않는다.
type Record map[string]any

// ID 는 "id" 필드를 문자열로 반환한다. 없으면 "".
func (r Record) ID() string {
	v, ok := r[FieldID]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// HasHosts 는 "hosts" 필드가 비어있지 않은 목록인지 검사한다.
func (r Record) HasHosts() bool {
	switch hs := r[FieldHosts].(type) {
	case []any:
		return len(hs) > 0
	case []Record:
		return len(hs) > 0
	case []map[string]any:
		return len(hs) > 0
	}
	return false
}

// WithHosts 는 hosts 를 채운 복사본을 반환한다. 원본은 건드리지 않는다.
// JSON 디코딩 결과와 같은 모양([]any of map[string]any)으로 맞춰 둔다.
func (r Record) WithHosts(hosts []Record) Record {
	out := r.Clone()
	list := make([]any, 0, len(hosts))
	for _, h := range hosts {
		list = append(list, map[string]any(h.Clone()))
	}
	out[FieldHosts] = list
	return out
}

// Clone 은 map / slice 를 재귀적으로 복사한 deep copy 를 반환한다.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue 는 JSON 모양의 값(map / slice / scalar)을 deep copy 한다.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Record:
		return map[string]any(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []Record:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = map[string]any(cloneMap(e))
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneMap(e)
		}
		return out
	default:
		return v
	}
}
