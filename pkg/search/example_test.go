package search_test

import (
	"context"
	"fmt"

	"github.com/openfroyo/statesearch/pkg/domains/counting"
	"github.com/openfroyo/statesearch/pkg/domains/grid"
	"github.com/openfroyo/statesearch/pkg/search"
)

func ExampleBreadthFirst() {
	p := counting.NewProblem(0, 9, []int{1, 2, -1})

	sol, err := search.BreadthFirst().Search(context.Background(), p)
	if err != nil {
		panic(err)
	}
	fmt.Println(sol)
	// Output: solution(dimension=5, cost=17, actions=[+1 +2 +2 +2 +2])
}

func ExampleUniformCost() {
	p := counting.NewProblem(0, 9, []int{1, 2, -1})

	ucs := search.UniformCost()
	sol, err := ucs.Search(context.Background(), p)
	if err != nil {
		panic(err)
	}
	fmt.Println(sol.Dimension(), sol.Cost())
	// Output: 9 9
}

func ExampleInformedSearch_Search() {
	world := grid.NewWorld(10, 10)
	goal := grid.Position{X: 3, Y: 4}
	p := grid.NewProblem(world, grid.Position{}, goal, grid.FourWay)

	sol, err := search.AStar().Search(context.Background(), p, grid.Euclidean(goal))
	if err != nil {
		panic(err)
	}
	fmt.Println(sol.Cost(), sol.Goal())
	// Output: 7 (3,4)
}
