package auth

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "hashes simple password", password: "password123"},
		{name: "hashes complex password", password: "P@ssw0rd!2023#$%^&*()"},
		{name: "hashes long password within limit", password: strings.Repeat("a", 72)},
		{name: "rejects password exceeding 72 bytes", password: strings.Repeat("a", 73), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hashPassword(tt.password, bcrypt.MinCost)
			if (err != nil) != tt.wantErr {
				t.Fatalf("hashPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if hash == tt.password {
				t.Error("hashPassword() returned the plain password")
			}
			if !CheckPassword(tt.password, hash) {
				t.Error("CheckPassword() rejected the hashed password")
			}
			if CheckPassword(tt.password+"x", hash) {
				t.Error("CheckPassword() accepted a different password")
			}
		})
	}
}

func TestHashPassword_DefaultCost(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost() error = %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("password", "not-a-bcrypt-hash") {
		t.Error("CheckPassword() accepted an invalid hash")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err != ErrPasswordTooShort {
		t.Errorf("ValidatePassword(short) = %v, want ErrPasswordTooShort", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 73)); err == nil {
		t.Error("ValidatePassword() accepted 73 bytes")
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Errorf("ValidatePassword() = %v", err)
	}
}
