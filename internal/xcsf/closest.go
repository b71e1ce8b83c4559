package xcsf

// selectClosest reorders votes, nums and cls in parallel so that the entries
// with the highest votes come first, stopping as soon as their numerosities
// cover k. It returns how many leading entries are needed to reach k (or all
// of them). Average cost is linear, using a randomized quickselect.
func selectClosest(votes []float64, nums []int, cls []*Classifier, k int, rng *Random) int {
	size := len(votes)
	selectClosestRange(votes, nums, cls, 0, size-1, k, rng)
	sum := 0
	for i := 0; i < size; i++ {
		sum += nums[i]
		if sum >= k {
			return i + 1
		}
	}
	return size
}

func selectClosestRange(votes []float64, nums []int, cls []*Classifier, begin, end, k int, rng *Random) {
	swap := func(a, b int) {
		votes[a], votes[b] = votes[b], votes[a]
		nums[a], nums[b] = nums[b], nums[a]
		cls[a], cls[b] = cls[b], cls[a]
	}
	for k > 0 && begin < end {
		if end-begin > 20 {
			span := float64(end + 1 - begin)
			p0 := begin + int(rng.Float64()*span)
			p1 := begin + int(rng.Float64()*span)
			p2 := begin + int(rng.Float64()*span)
			swap(medianOfThree(votes, p0, p1, p2), end)
		}
		pivot := votes[end]

		i := begin
		left := 0
		for j := begin; j < end; j++ {
			if pivot <= votes[j] {
				swap(i, j)
				left += nums[i]
				i++
			}
		}
		swap(i, end)

		switch {
		case k < left:
			end = i - 1
		case k < left+nums[i]:
			return
		default:
			k -= left + nums[i]
			begin = i + 1
		}
	}
}

func medianOfThree(v []float64, p0, p1, p2 int) int {
	if v[p2] < v[p1] {
		switch {
		case v[p1] < v[p0]:
			return p1
		case v[p0] < v[p2]:
			return p2
		default:
			return p0
		}
	}
	switch {
	case v[p2] < v[p0]:
		return p2
	case v[p0] < v[p1]:
		return p1
	default:
		return p0
	}
}
