package framingham

import "math"

// Bucket maps risk percentages below UpperBound to Label
type Bucket struct {
	UpperBound float64
	Label      Label
}

var diabetesBuckets = []Bucket{
	{UpperBound: 10, Label: LabelLow},
	{UpperBound: 20, Label: LabelIntermediate},
	{UpperBound: math.Inf(1), Label: LabelHigh},
}

var cvdBuckets = []Bucket{
	{UpperBound: 5, Label: LabelLow},
	{UpperBound: 7.5, Label: LabelBorderline},
	{UpperBound: 20, Label: LabelIntermediate},
	{UpperBound: math.Inf(1), Label: LabelHigh},
}

// DiabetesBuckets returns a copy of the diabetes label table
func DiabetesBuckets() []Bucket {
	return append([]Bucket(nil), diabetesBuckets...)
}

// CVDBuckets returns a copy of the CVD label table
func CVDBuckets() []Bucket {
	return append([]Bucket(nil), cvdBuckets...)
}

// ClassifyDiabetesRisk labels a diabetes risk percentage: <10 low, <20 intermediate, else high
func ClassifyDiabetesRisk(pct float64) Label {
	return bucketize(diabetesBuckets, pct)
}

// ClassifyCVDRisk labels a CVD risk percentage: <5 low, <7.5 borderline, <20 intermediate, else high
func ClassifyCVDRisk(pct float64) Label {
	return bucketize(cvdBuckets, pct)
}

func bucketize(buckets []Bucket, pct float64) Label {
	for _, b := range buckets {
		if pct < b.UpperBound {
			return b.Label
		}
	}
	return buckets[len(buckets)-1].Label
}
