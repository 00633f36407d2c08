// cmd/seeduser/main.go — Crea/actualiza un operador.
// Uso: go run ./cmd/seeduser -username encargada -password secreto -rol supervisor [-till mostrador-1]
package main

import (
	"context"
	"flag"
	"os"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/infra"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres DSN (default $DATABASE_URL)")
	username := flag.String("username", "admin", "nombre de usuario")
	password := flag.String("password", "", "password en claro (obligatorio)")
	nombre := flag.String("nombre", "Administrador", "nombre visible")
	rol := flag.String("rol", "administrador", "cajero | supervisor | administrador")
	till := flag.String("till", "", "caja asignada; vacio = cualquiera")
	flag.Parse()

	if *dsn == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	switch *rol {
	case "cajero", "supervisor", "administrador":
	default:
		log.Fatal().Str("rol", *rol).Msg("rol invalido")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	// NewDatabase also migrates, so this works on an empty database.
	db, err := infra.NewDatabase(*dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect error")
	}

	var tillID *string
	if *till != "" {
		tillID = till
	}

	result := db.WithContext(context.Background()).Exec(`
		INSERT INTO operators (username, nombre, password_hash, rol, till_id, activo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, true, now(), now())
		ON CONFLICT (username) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    nombre = EXCLUDED.nombre,
		    rol = EXCLUDED.rol,
		    till_id = EXCLUDED.till_id,
		    activo = true,
		    updated_at = now()
	`, *username, *nombre, string(hash), *rol, tillID)

	if result.Error != nil {
		log.Fatal().Err(result.Error).Msg("insert error")
	}
	log.Info().Str("username", *username).Str("rol", *rol).Msg("operador creado/actualizado")
}
