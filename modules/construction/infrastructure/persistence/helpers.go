package persistence

// idsArg converts ids for use with = ANY($n).
func idsArg(ids []uint) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
