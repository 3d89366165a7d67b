// internal/canonical/canonical.go
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"events-scrape/internal/model"

	json "github.com/goccy/go-json"
)

// Canonicalizer
// ------------------------------------------------------------
// 의미상 같은 레코드가 항상 같은 직렬화 결과를 갖도록 정규화한다.
//
//  1. hosts 목록 정렬 (id 없는 host 가 가장 앞, 그다음 id 오름차순,
//     동률은 host 의 key 정렬 JSON 으로 결정)
//  2. 설정된 휘발성 필드(FieldMask) 제거
//  3. 마스크로 host 내용이 바뀌었을 수 있으므로 hosts 를 다시 정렬
//
// 1 덕분에 "hosts.0" 같은 index 경로도 입력 순서와 무관하게 같은 host 를 가리킨다.
//
// 호출자의 레코드는 절대 수정하지 않는다 (항상 deep copy 후 작업).
type Canonicalizer struct {
	mask FieldMask
}

func New(mask FieldMask) *Canonicalizer {
	return &Canonicalizer{mask: mask}
}

// Canonicalize 는 정규화된 복사본을 반환한다. 같은 입력 → 같은 출력 (pure).
func (c *Canonicalizer) Canonicalize(r model.Record) model.Record {
	if r == nil {
		return nil
	}
	doc := map[string]any(r.Clone())
	sortHosts(doc)
	if c != nil && len(c.mask) > 0 {
		c.mask.Apply(doc)
		sortHosts(doc)
	}
	return model.Record(doc)
}

// Fingerprint 는 canonical form 의 content hash.
// 자연 키가 있는 레코드(cluster)의 변경 감지 신호로 쓰인다.
func (c *Canonicalizer) Fingerprint(r model.Record) (string, error) {
	return Hash(c.Canonicalize(r))
}

// Hash 는 값을 key 정렬된 JSON 으로 직렬화한 뒤 sha256 hex 를 반환한다.
// goccy/go-json 은 encoding/json 과 동일하게 map key 를 정렬해서 출력한다.
func Hash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonical: marshal: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// eventIdentityFields 는 이벤트 identity 를 구성하는 속성들.
// 서버가 부여한 id 가 없으므로 이 조합으로 같은 이벤트를 식별한다.
var eventIdentityFields = []string{
	"cluster_id",
	"host_id",
	"infra_env_id",
	"event_time",
	"name",
	"message",
	"severity",
	"category",
	"request_id",
}

// EventID 는 이벤트 속성 조합의 해시. 없는 속성은 조합에서 빠진다.
func EventID(ev model.Record) (string, error) {
	key := make(map[string]any, len(eventIdentityFields))
	for _, f := range eventIdentityFields {
		if v, ok := ev[f]; ok && v != nil {
			key[f] = v
		}
	}
	return Hash(key)
}

func sortHosts(doc map[string]any) {
	if hosts, ok := doc[model.FieldHosts].([]any); ok {
		sortByID(hosts)
	}
}

type hostKey struct {
	id    string
	hasID bool
	raw   string
}

// sortByID: 정렬 기준은 (id 존재 여부, id 문자열, key 정렬 JSON).
// 전순서라서 입력 순열과 무관하게 결과가 하나로 정해진다.
func sortByID(hosts []any) {
	keys := make([]hostKey, len(hosts))
	for i, h := range hosts {
		id, ok := hostID(h)
		raw, _ := json.Marshal(h)
		keys[i] = hostKey{id: id, hasID: ok, raw: string(raw)}
	}
	idx := make([]int, len(hosts))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		if a.hasID != b.hasID {
			return !a.hasID
		}
		if a.id != b.id {
			return a.id < b.id
		}
		return a.raw < b.raw
	})
	sorted := make([]any, len(hosts))
	for i, k := range idx {
		sorted[i] = hosts[k]
	}
	copy(hosts, sorted)
}

func hostID(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := m[model.FieldID]
	if !ok || id == nil {
		return "", false
	}
	if s, ok := id.(string); ok {
		return s, true
	}
	return fmt.Sprint(id), true
}
