package repository

import sq "github.com/Masterminds/squirrel"

// psql builds statements with dollar placeholders, which is what pgx expects.
// Both repositories in this package share it.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
