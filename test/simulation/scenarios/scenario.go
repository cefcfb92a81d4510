package scenarios

import (
	"github.com/arloliu/reprise/test/simulation/types"
)

// ForProfile returns the scenarios run by a simulation profile.
//
// The quick profile covers single-server faults; comprehensive and soak add
// flapping servers and a full outage.
func ForProfile(profile string) []types.Scenario {
	list := []types.Scenario{
		&ServerFailure{},
		&StepDown{},
	}
	if profile == "comprehensive" || profile == "soak" {
		list = append(list, &Flapping{}, &TotalOutage{})
	}

	return list
}
