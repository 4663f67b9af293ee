package bootstrap

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Loadenv loads the first existing dotenv file among paths (".env" when none
// are given, or the path in CRM_ENV_FILE). Variables already present in the
// process environment win. It reports the file that was loaded.
func Loadenv(paths ...string) string {
	if p := os.Getenv("CRM_ENV_FILE"); p != "" {
		paths = append([]string{p}, paths...)
	}
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("could not load %s: %v", p, err)
			continue
		}
		return p
	}
	log.Println("No .env file found, using system environment variables")
	return ""
}
