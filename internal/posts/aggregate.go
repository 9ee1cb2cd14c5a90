package posts

type accumulator struct {
	likes, shares, comments, count int
}

// Aggregate groups posts by type and returns one row per PostType in
// declaration order, including categories with no posts. It does not
// modify its input.
func Aggregate(posts []Post) []AggregateRow {
	acc := make(map[PostType]*accumulator, len(AllTypes))
	for _, t := range AllTypes {
		acc[t] = &accumulator{}
	}

	for _, p := range posts {
		a, ok := acc[p.Type]
		if !ok {
			a = acc[DefaultType]
		}
		a.likes += p.Likes
		a.shares += p.Shares
		a.comments += p.Comments
		a.count++
	}

	rows := make([]AggregateRow, 0, len(AllTypes))
	for _, t := range AllTypes {
		a := acc[t]
		rows = append(rows, AggregateRow{
			PostType:    t,
			AvgLikes:    roundedMean(a.likes, a.count),
			AvgShares:   roundedMean(a.shares, a.count),
			AvgComments: roundedMean(a.comments, a.count),
			TotalPosts:  a.count,
		})
	}
	return rows
}

// EmptyAggregate returns the aggregate of no posts.
func EmptyAggregate() []AggregateRow {
	return Aggregate(nil)
}

// ComputeTotals sums engagement across all posts.
func ComputeTotals(posts []Post) Totals {
	var t Totals
	var rateSum float64
	for _, p := range posts {
		t.Posts++
		t.Likes += p.Likes
		t.Shares += p.Shares
		t.Comments += p.Comments
		t.Views += p.Views
		t.Saves += p.Saves
		rateSum += p.EngagementRate
	}
	if t.Posts > 0 {
		t.AvgEngagementRate = rateSum / float64(t.Posts)
	}
	return t
}

// roundedMean returns sum/count rounded half up, or 0 for an empty group.
// Inputs are non-negative, so integer arithmetic is exact.
func roundedMean(sum, count int) int {
	if count <= 0 {
		return 0
	}
	return (2*sum + count) / (2 * count)
}
