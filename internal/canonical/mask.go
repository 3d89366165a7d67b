// internal/canonical/mask.go
package canonical

import (
	"strconv"
	"strings"
)

// Wildcard 는 map 의 모든 key, list 의 모든 원소에 매칭되는 세그먼트.
const Wildcard = "*"

// Path 는 "hosts.*.checked_in_at" 같은 점 경로를 세그먼트로 나눈 것.
type Path []string

// ParsePath 는 "." 구분 경로를 파싱한다. 빈 세그먼트는 버린다.
func ParsePath(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, ".") {
		if seg = strings.TrimSpace(seg); seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// FieldMask 는 canonical form 에서 제거할 경로 목록.
type FieldMask []Path

// ParseFieldMask 는 설정 값(CLUSTER_EVENTS_IGNORE_FIELDS)을 마스크로 바꾼다.
func ParseFieldMask(fields []string) FieldMask {
	mask := make(FieldMask, 0, len(fields))
	for _, f := range fields {
		if p := ParsePath(f); len(p) > 0 {
			mask = append(mask, p)
		}
	}
	return mask
}

// Apply 는 node 에서 마스크의 모든 경로를 제거한다.
// node 는 호출자가 이미 복사해 둔 값이어야 한다 (제자리 수정).
// 경로가 실제 모양과 맞지 않으면 그 경로는 아무것도 하지 않는다.
func (m FieldMask) Apply(node any) any {
	for _, p := range m {
		node = deletePath(node, p)
	}
	return node
}

// deletePath 는 list 원소 삭제로 slice 가 바뀔 수 있어 새 node 를 반환한다.
func deletePath(node any, p Path) any {
	if len(p) == 0 {
		return node
	}
	seg, rest := p[0], p[1:]

	switch t := node.(type) {
	case map[string]any:
		deleteInMap(t, seg, rest)
		return t
	case []any:
		return deleteInList(t, seg, rest)
	default:
		// scalar 또는 nil: 더 내려갈 곳이 없음 → no-op
		return node
	}
}

func deleteInMap(m map[string]any, seg string, rest Path) {
	if seg == Wildcard {
		if len(rest) == 0 {
			for k := range m {
				delete(m, k)
			}
			return
		}
		for k, v := range m {
			m[k] = deletePath(v, rest)
		}
		return
	}

	child, ok := m[seg]
	if !ok {
		return
	}
	if len(rest) == 0 {
		delete(m, seg)
		return
	}
	m[seg] = deletePath(child, rest)
}

func deleteInList(list []any, seg string, rest Path) []any {
	if seg == Wildcard {
		if len(rest) == 0 {
			return list[:0]
		}
		for i, v := range list {
			list[i] = deletePath(v, rest)
		}
		return list
	}

	idx, err := strconv.Atoi(seg)
	if err != nil || idx < 0 || idx >= len(list) {
		return list
	}
	if len(rest) == 0 {
		// 자리는 남기고 값만 비운다. 여러 번 적용해도 결과가 같다.
		list[idx] = nil
		return list
	}
	list[idx] = deletePath(list[idx], rest)
	return list
}
