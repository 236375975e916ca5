//go:build !linux && !darwin && !windows

package physdisk

func ListMounted() []Mount { return nil }

func deviceForMount(string) (string, string) { return "", "" }
