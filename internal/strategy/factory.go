package strategy

func New() Strategy {
	return NewTrendPullback()
}
