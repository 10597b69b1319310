package config

import (
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/mitchellh/go-homedir"
)

var (
	configHomeDir     string
	configHomeDirOnce sync.Once
)

// mustGetConfigHomeDir returns the full path to the home directory that stores all config files.
func mustGetConfigHomeDir() string {
	configHomeDirOnce.Do(func() {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		configHomeDir = path.Join(home, MainDir)
	})
	return configHomeDir
}

// makeDir will make the given directory if it does not already exist.
// If it exists then return nil.
// An error is returned if there is a problem creating the dir.
func makeDir(dir string) error {
	// Test if config dir exists.
	_, err := os.Stat(dir)
	if os.IsNotExist(err) { // if it doesn't exist...
		// Create the directory.
		if err = os.Mkdir(dir, 0755); err != nil { // if the dir was NOT created...
			return fmt.Errorf("error creating directory %v", dir)
		}
	} else if err != nil && !os.IsNotExist(err) { // if there was an error getting status...
		return err
	}
	return nil
}
