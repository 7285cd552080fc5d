// Package all registers every storage backend with the storage factory.
package all

import (
	_ "jsonetl/internal/storage/mssql"
	_ "jsonetl/internal/storage/mysql"
	_ "jsonetl/internal/storage/postgres"
	_ "jsonetl/internal/storage/sqlite"
)
