// internal/worker/enrich.go
package worker

import (
	"sort"

	"events-scrape/internal/canonical"
	"events-scrape/internal/model"
	"events-scrape/internal/store"
)

// enriched event 에 붙는 필드 이름
const (
	fieldCluster      = "cluster"
	fieldVersions     = "versions"
	fieldHostsSummary = "hosts_summary"
)

// enrichEvents
// ------------------------------------------------------------
// 이벤트 하나당 문서 하나. 이벤트 필드는 그대로 두고
//
//	cluster  : hosts 가 채워진 cluster 스냅샷 + hosts_summary
//	versions : 이번 사이클의 component versions (있을 때만)
//
// 를 붙인다. 입력 레코드는 수정하지 않는다.
func enrichEvents(cluster, versions model.Record, events []model.Record) []model.Record {
	if len(events) == 0 {
		return nil
	}
	snapshot := cluster.Clone()
	snapshot[fieldHostsSummary] = summarizeHosts(cluster)

	out := make([]model.Record, 0, len(events))
	for _, ev := range events {
		doc := ev.Clone()
		doc[fieldCluster] = model.CloneValue(map[string]any(snapshot))
		if len(versions) > 0 {
			doc[fieldVersions] = model.CloneValue(map[string]any(versions))
		}
		out = append(out, doc)
	}
	return out
}

// summarizeHosts 는 hosts 를 역할 / 상태별로 세고 아키텍처, ISO 종류를 요약한다.
//
//	heterogeneous_arch : host cpu_architecture 가 2 종류 이상
//	is_multiarch       : cluster cpu_architecture == "multi" 이고 heterogeneous_arch
//	iso_type           : host infra_env.type 종류가 하나면 그 값, 여럿이면 "mixed",
//	                     host 에 정보가 없으면 cluster image_info.type
func summarizeHosts(cluster model.Record) map[string]any {
	hosts, _ := cluster[model.FieldHosts].([]any)

	roles := map[string]any{}
	statuses := map[string]any{}
	arches := map[string]struct{}{}
	isoTypes := map[string]struct{}{}

	for _, v := range hosts {
		h, ok := v.(map[string]any)
		if !ok {
			continue
		}
		countInto(roles, stringField(h, "role"))
		countInto(statuses, stringField(h, "status"))
		if arch := stringField(h, "cpu_architecture"); arch != "" {
			arches[arch] = struct{}{}
		}
		if env, ok := h["infra_env"].(map[string]any); ok {
			if t := stringField(env, "type"); t != "" {
				isoTypes[t] = struct{}{}
			}
		}
	}

	heterogeneous := len(arches) > 1
	return map[string]any{
		"host_count":         len(hosts),
		"roles":              roles,
		"statuses":           statuses,
		"cpu_architectures":  sortedKeys(arches),
		"heterogeneous_arch": heterogeneous,
		"is_multiarch":       stringField(cluster, "cpu_architecture") == "multi" && heterogeneous,
		"iso_type":           isoType(cluster, isoTypes),
	}
}

func isoType(cluster model.Record, fromHosts map[string]struct{}) string {
	switch len(fromHosts) {
	case 0:
		if info, ok := cluster["image_info"].(map[string]any); ok {
			return stringField(info, "type")
		}
		return ""
	case 1:
		return sortedKeys(fromHosts)[0].(string)
	default:
		return "mixed"
	}
}

func countInto(counts map[string]any, key string) {
	if key == "" {
		return
	}
	n, _ := counts[key].(int)
	counts[key] = n + 1
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// sortedKeys 는 JSON 모양([]any)으로 정렬된 key 목록을 반환한다.
func sortedKeys(set map[string]struct{}) []any {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

// enrichedFingerprint 는 cluster 스냅샷을 canonical form 으로 바꾼 뒤 해시한다.
// hosts 순서나 마스크된 휘발성 필드만 바뀐 사이클은 다시 쓰지 않는다.
func enrichedFingerprint(canon *canonical.Canonicalizer) store.IdentityFunc {
	return func(doc model.Record) (string, error) {
		key := make(map[string]any, len(doc))
		for k, v := range doc {
			key[k] = v
		}
		if c, ok := doc[fieldCluster].(map[string]any); ok {
			key[fieldCluster] = map[string]any(canon.Canonicalize(model.Record(c)))
		}
		return canonical.Hash(key)
	}
}
