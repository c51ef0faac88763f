package semaphore

import (
	"github.com/stretchr/testify/mock"
)

type mockAdder struct {
	mock.Mock
}

func (m *mockAdder) Add(delta float64) {
	m.Called(delta)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) Observe(value float64) {
	m.Called(value)
}
