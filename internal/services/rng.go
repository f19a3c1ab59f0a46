package services

import (
	"math/rand/v2"

	"numbers-game-backend/internal/models"
)

type NumberGenerator interface {
	// Next returns a number uniformly distributed in [1, 10].
	Next() int
}

type RandomNumberGenerator struct{}

func NewRandomNumberGenerator() *RandomNumberGenerator {
	return &RandomNumberGenerator{}
}

func (RandomNumberGenerator) Next() int {
	return models.MinNumber + rand.IntN(models.MaxNumber-models.MinNumber+1)
}
