//go:build ignore

// generate_hash.go — генерирует API-ключ и его Argon2id-хеш.
// Запуск: go run scripts/generate_hash.go [ключ]
//
// Без аргумента ключ генерируется случайно. Хеш вставьте в .env как API_KEY_HASH,
// сам ключ передавайте клиентам в заголовке Authorization: Bearer <ключ>.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"

	"serotonyl.ru/engagement-guard/internal/api/middleware"
)

func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			fmt.Printf("Ошибка генерации ключа: %v\n", err)
			os.Exit(1)
		}
		key = base64.RawURLEncoding.EncodeToString(raw)
		fmt.Println("API-ключ (сохраните, повторно не показывается):")
		fmt.Println(key)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		fmt.Printf("Ошибка генерации соли: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хеш ключа (вставьте в .env как API_KEY_HASH):")
	fmt.Println(middleware.HashAPIKey(key, salt))
}
