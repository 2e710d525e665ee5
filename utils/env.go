package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvLocations are the .env files tried by LoadEnvWithFallback, in order
var EnvLocations = []string{
	".env",        // Current directory
	".env.local",  // Local override
	"config/.env", // Config directory
}

// LoadEnv loads environment variables from a .env file.
// Variables already present in the environment keep their value.
// A missing file is not an error.
func LoadEnv(filename string) (bool, error) {
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	if err := godotenv.Load(filename); err != nil {
		return false, fmt.Errorf("error loading %s: %w", filename, err)
	}
	return true, nil
}

// LoadEnvWithFallback loads the first .env file found in EnvLocations.
// It returns the file that was loaded, or "" when none exists.
func LoadEnvWithFallback() (string, error) {
	for _, location := range EnvLocations {
		loaded, err := LoadEnv(location)
		if err != nil {
			return "", err
		}
		if loaded {
			return location, nil
		}
	}

	return "", nil
}
