package authcore_test

import (
	"context"
	"fmt"
	"log"

	"github.com/servicely/authcore"
	"github.com/servicely/authcore/store/memory"
)

// Example wires a Core against in-memory stores and runs the basic
// register/login round trip. Production deployments swap in the postgres
// stores and a redis-backed token store.
func Example() {
	cfg := authcore.Config{
		JWT: authcore.JWTConfig{
			AccessSecret:  []byte("example-access-secret"),
			RefreshSecret: []byte("example-refresh-secret"),
		},
	}

	core, err := authcore.New().
		WithConfig(cfg).
		WithUserStore(memory.NewUserStore()).
		WithRefreshTokenStore(memory.NewRefreshTokenStore()).
		WithMFAStore(memory.NewMFAStore()).
		WithAuditStore(memory.NewAuditStore()).
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer core.Close()

	ctx := authcore.WithClientIP(context.Background(), "203.0.113.9")

	resp, err := core.Register(ctx, authcore.RegisterInput{
		Email:     "alice@example.com",
		Password:  "Str0ng!Passw0rd",
		FirstName: "Alice",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("registered:", resp.User.Email)

	login, err := core.Login(ctx, authcore.LoginInput{
		Email:    "alice@example.com",
		Password: "Str0ng!Passw0rd",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("roles:", login.User.Roles)

	// Output:
	// registered: alice@example.com
	// roles: [customer]
}
