package account

// BucketKey names one level range used for separation output files.
type BucketKey string

// BucketUnclassified catches levels outside every declared range. ParseLine
// rejects negative levels already, but Classify does not rely on that.
const BucketUnclassified BucketKey = "unclassified"

type levelRange struct {
	key BucketKey
	min int
	max int // inclusive; -1 means unbounded
}

// Ranges partition the non-negative integers: no gaps, no overlaps.
var levelRanges = []levelRange{
	{key: "0-30", min: 0, max: 30},
	{key: "31-60", min: 31, max: 60},
	{key: "61-99", min: 61, max: 99},
	{key: "100+", min: 100, max: -1},
}

// Buckets returns the declared bucket keys in range order.
func Buckets() []BucketKey {
	keys := make([]BucketKey, 0, len(levelRanges))
	for _, lr := range levelRanges {
		keys = append(keys, lr.key)
	}
	return keys
}

// Classify maps a record to the bucket containing its level.
func Classify(r *Record) BucketKey {
	return ClassifyLevel(r.Level)
}

// ClassifyLevel maps a level to its bucket, routing anything outside the
// declared ranges to BucketUnclassified instead of dropping it.
func ClassifyLevel(level int) BucketKey {
	for _, lr := range levelRanges {
		if level >= lr.min && (lr.max < 0 || level <= lr.max) {
			return lr.key
		}
	}
	return BucketUnclassified
}
