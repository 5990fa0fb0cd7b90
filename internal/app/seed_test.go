package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vidtube/backend/internal/auth"
)

func TestParseSeed(t *testing.T) {
	data := []byte(`{
		"users": [{
			"_id": {"$oid": "65a000000000000000000001"},
			"username": "alice",
			"plainPassword": "password123",
			"createdAt": {"$date": "2024-01-01T00:00:00Z"}
		}],
		"tweets": [{"content": "hello", "owner": {"$oid": "65a000000000000000000001"}}]
	}`)

	seed, err := parseSeed(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if diff := cmp.Diff([]string{"tweets", "users"}, seed.collections()); diff != "" {
		t.Fatalf("collections mismatch (-want +got):\n%s", diff)
	}

	user := seed["users"][0]
	if _, ok := user["plainPassword"]; ok {
		t.Fatal("expected plain password to be removed")
	}
	hash, _ := user["password"].(string)
	if err := auth.CheckPassword(hash, "password123"); err != nil {
		t.Fatalf("expected hashed password, got %v", err)
	}

	id, ok := user["_id"].(primitive.ObjectID)
	if !ok || id.Hex() != "65a000000000000000000001" {
		t.Fatalf("expected object id, got %#v", user["_id"])
	}
	if _, ok := user["createdAt"].(primitive.DateTime); !ok {
		t.Fatalf("expected date, got %#v", user["createdAt"])
	}
}

func TestParseSeedRejectsUnknownCollection(t *testing.T) {
	if _, err := parseSeed([]byte(`{"channels": [{"name": "x"}]}`)); err == nil {
		t.Fatal("expected unknown collection to fail")
	}
}

func TestDevSeedParses(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "seeds", "dev_seed.json"))
	if err != nil {
		t.Fatalf("read dev seed: %v", err)
	}
	seed, err := parseSeed(data)
	if err != nil {
		t.Fatalf("parse dev seed: %v", err)
	}
	if len(seed["users"]) == 0 || len(seed["videos"]) == 0 {
		t.Fatal("expected dev seed to contain users and videos")
	}
}
