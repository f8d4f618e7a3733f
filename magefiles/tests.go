//go:build mage

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	postgresContainer = "dropingester-postgres"
	// Must match TestPostgresEnvVar in internal/common/database
	testPostgresEnvVar = "DROPINGESTER_TEST_POSTGRES"
	testPostgresUrl    = "host=localhost port=5433 user=postgres password=psw sslmode=disable"
)

var Gotestsum string

var LocalBin = filepath.Join(os.Getenv("PWD"), "/bin")

func makeLocalBin() error {
	if _, err := os.Stat(LocalBin); os.IsNotExist(err) {
		err = os.MkdirAll(LocalBin, os.ModePerm)
		if err != nil {
			return err
		}
	}
	return nil
}

// Gotestsum downloads gotestsum locally if necessary
func gotestsum() error {
	mg.Deps(makeLocalBin)
	Gotestsum = filepath.Join(LocalBin, binaryWithExt("gotestsum"))

	if _, err := os.Stat(Gotestsum); os.IsNotExist(err) {
		fmt.Println(Gotestsum)
		cmd := exec.Command(goBinary(), "install", "gotest.tools/gotestsum@v1.8.2")
		cmd.Env = append(os.Environ(), "GOBIN="+LocalBin)
		return cmd.Run()
	}
	return nil
}

// Tests runs the unit tests, which use sqlite and temporary folders only.
func Tests() error {
	mg.Deps(gotestsum)
	if err := os.MkdirAll("test_reports", os.ModePerm); err != nil {
		return err
	}
	return runtest("coverage.xml", "unit.txt", "./...")
}

// TestsPostgres runs every test, including those needing postgres, against a throwaway container.
func TestsPostgres() (err error) {
	mg.Deps(gotestsum, dockerCheck)
	if err := os.MkdirAll("test_reports", os.ModePerm); err != nil {
		return err
	}

	err = dockerRun("run", "-d", "--name="+postgresContainer, "-p", "5433:5432", "-e", "POSTGRES_PASSWORD=psw", "postgres:14.2")
	if err != nil {
		return err
	}
	defer func() {
		dockerErr := dockerRun("rm", "-f", postgresContainer)
		if dockerErr != nil {
			if err == nil {
				err = dockerErr
			} else {
				err = fmt.Errorf("%w; %s", err, dockerErr.Error())
			}
		}
	}()

	err = sh.Run("sleep", "3")
	if err != nil {
		return err
	}

	os.Setenv(testPostgresEnvVar, testPostgresUrl)
	defer os.Unsetenv(testPostgresEnvVar)
	return runtest("coverage_postgres.xml", "postgres.txt", "./...")
}

func runtest(coverageFileName, outputFileName string, directories ...string) error {
	args := []string{"--", "-v", "-count=1"}
	if coverageFileName != "" {
		args = append(args, "-coverprofile", filepath.Join("test_reports", coverageFileName))
	}
	args = append(args, directories...)

	cmd := exec.Command(Gotestsum, args...)
	file, err := os.Create(filepath.Join("test_reports", outputFileName))
	if err != nil {
		return err
	}
	defer file.Close()

	cmd.Stdout = io.MultiWriter(os.Stdout, file)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
