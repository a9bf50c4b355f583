// Package kernels holds loops for trying glp on Go source:
//
//	glp plan testdata/kernels.go chain
//	glp simulate testdata/kernels.go logAll --events
package kernels

func sum(x []int64, n int) int64 {
	var s int64
	for i := 0; i < n; i++ {
		s += x[i]
	}
	return s
}

func chain(x []int64, y []int64, n int) {
	for i := 0; i < n; i++ {
		y[i] = x[i]*2 + 1
	}
}

func clamp(x []float64, y []float64, n int) {
	for i := 0; i < n; i++ {
		v := x[i]
		r := v
		if v > 1 {
			r = 1
		} else if v < -1 {
			r = -1
		}
		y[i] = r
	}
}

func logAll(x []int64, n int) {
	for i := 0; i < n; i++ {
		emit(x[i] * 3)
	}
}

func search(x []int64, n int, key int64) int {
	for i := 0; i < n; i++ {
		if x[i] == key {
			return i
		}
	}
	return -1
}

func emit(v int64) {}
