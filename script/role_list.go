package script

import "math/rand"

// RoleList is an ordered list of role names.
type RoleList []string

func (rl RoleList) Count() int {
	return len(rl)
}

func (rl RoleList) Clone() RoleList {
	out := make(RoleList, len(rl))
	copy(out, rl)
	return out
}

func (rl RoleList) Contains(role string) bool {
	for _, r := range rl {
		if r == role {
			return true
		}
	}
	return false
}

// Without returns a copy of rl that skips every role present in exclude.
func (rl RoleList) Without(exclude map[string]struct{}) RoleList {
	out := make(RoleList, 0, len(rl))
	for _, r := range rl {
		if _, skip := exclude[r]; skip {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (rl RoleList) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(rl), func(i, j int) {
		rl[i], rl[j] = rl[j], rl[i]
	})
}

// Sample draws n distinct roles without replacement. The receiver is left untouched.
func (rl RoleList) Sample(rng *rand.Rand, n int) (RoleList, bool) {
	if n < 0 || n > len(rl) {
		return nil, false
	}
	pool := rl.Clone()
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n:n], true
}

func (rl *RoleList) Add(roles ...string) {
	*rl = append(*rl, roles...)
}

// Pop removes the last role. ok is false when the list is empty.
func (rl *RoleList) Pop() (role string, ok bool) {
	n := len(*rl)
	if n == 0 {
		return "", false
	}
	role = (*rl)[n-1]
	*rl = (*rl)[:n-1]
	return role, true
}

// PopOr pops the last role or returns fallback when the list is exhausted.
func (rl *RoleList) PopOr(fallback string) string {
	if role, ok := rl.Pop(); ok {
		return role
	}
	return fallback
}

// Remove deletes the first occurrence of role and reports whether it was found.
func (rl *RoleList) Remove(role string) bool {
	for i, r := range *rl {
		if r == role {
			*rl = append((*rl)[:i], (*rl)[i+1:]...)
			return true
		}
	}
	return false
}

// Insert places role at index i, shifting later entries right.
func (rl *RoleList) Insert(i int, role string) {
	if i < 0 {
		i = 0
	}
	if i >= len(*rl) {
		*rl = append(*rl, role)
		return
	}
	*rl = append(*rl, "")
	copy((*rl)[i+1:], (*rl)[i:])
	(*rl)[i] = role
}
