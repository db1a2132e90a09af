//go:build race

package pluginbuild_test

const raceEnabled = true
