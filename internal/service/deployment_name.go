package service

import (
	"fmt"
	"math/rand/v2"
)

var (
	nameAdjectives = []string{
		"amber", "brave", "calm", "crisp", "daring", "eager", "fuzzy", "gentle",
		"golden", "hidden", "icy", "jolly", "lively", "misty", "noble", "quiet",
		"rapid", "silent", "sunny", "swift", "tidy", "vivid", "wild", "young",
	}
	nameNouns = []string{
		"badger", "brook", "cedar", "comet", "dune", "falcon", "fern", "harbor",
		"heron", "lagoon", "lynx", "maple", "meadow", "otter", "pine", "quartz",
		"raven", "reef", "sparrow", "summit", "thistle", "tundra", "willow", "zephyr",
	}
)

// generateDeploymentName returns a readable name such as "swift-otter-42".
func generateDeploymentName() string {
	return fmt.Sprintf("%s-%s-%d",
		nameAdjectives[rand.IntN(len(nameAdjectives))],
		nameNouns[rand.IntN(len(nameNouns))],
		rand.IntN(100),
	)
}
