package helper

import (
	"os"
	"testing"
)

func TestEnvVarName(t *testing.T) {
	if got := EnvVarName("s3-bucket"); got != "WMI_S3_BUCKET" {
		t.Fatalf("expected WMI_S3_BUCKET; got %v", got)
	}
	if got := EnvVarName(" log-level "); got != "WMI_LOG_LEVEL" {
		t.Fatalf("expected WMI_LOG_LEVEL; got %v", got)
	}
}

func TestGetDsnEnvVarName(t *testing.T) {
	if got := GetDsnEnvVarName("warehouse"); got != "WMI_WAREHOUSE_DSN" {
		t.Fatalf("expected WMI_WAREHOUSE_DSN; got %v", got)
	}
}

func TestGetRegionEnvVarName(t *testing.T) {
	if got := GetRegionEnvVarName("landing"); got != "WMI_LANDING_S3_REGION" {
		t.Fatalf("expected WMI_LANDING_S3_REGION; got %v", got)
	}
}

func TestGetEnvVar(t *testing.T) {
	key := "WMI_TEST_GET_ENV_VAR"
	defer os.Unsetenv(key)

	// Test 1 - a missing optional variable is empty without error.
	v, err := GetEnvVar(key, false)
	if err != nil || v != "" {
		t.Fatalf("expected empty value and no error; got %q, %v", v, err)
	}

	// Test 2 - a missing mandatory variable is an error.
	if _, err := GetEnvVar(key, true); err == nil {
		t.Fatal("expected an error for a missing mandatory variable")
	}

	// Test 3 - a set variable is returned.
	_ = os.Setenv(key, "abc")
	v, err = GetEnvVar(key, true)
	if err != nil || v != "abc" {
		t.Fatalf("expected abc; got %q, %v", v, err)
	}
}

func TestReadValueFromEnv(t *testing.T) {
	key := "WMI_TEST_READ_VALUE"
	defer os.Unsetenv(key)

	var v string
	if err := ReadValueFromEnv(key, &v); err == nil {
		t.Fatal("expected an error for an unset variable")
	}
	_ = os.Setenv(key, "abc")
	if err := ReadValueFromEnv(key, &v); err != nil || v != "abc" {
		t.Fatalf("expected abc; got %q, %v", v, err)
	}
}

func TestReadValueFromEnvWithDefault(t *testing.T) {
	key := "WMI_TEST_READ_VALUE_DEFAULT"
	defer os.Unsetenv(key)

	if got := ReadValueFromEnvWithDefault(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback; got %v", got)
	}
	_ = os.Setenv(key, "abc")
	if got := ReadValueFromEnvWithDefault(key, "fallback"); got != "abc" {
		t.Fatalf("expected abc; got %v", got)
	}
}
