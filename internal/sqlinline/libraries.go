// Package sqlinline holds every SQL statement the service executes. Each
// constant starts with a `--sql <uuid>` marker line consumed by
// infra.SQLRunner for tracing.
package sqlinline

// Library tables share one shape: identity columns plus a jsonb payload with
// the type-specific fields. The %s placeholder is filled with a table name
// from the fixed set in internal/library/remote.
const QListLibraryRecords = `--sql 8d6f1a42-3b7e-4c19-9a52-f07d8e21c6b4
select id, name, fields, created_at
from %s
where user_id = $1
order by created_at desc;
`

const QInsertLibraryRecord = `--sql 51c2ad90-77e4-4f0b-8de3-2ab964f1d580
insert into %s (id, user_id, name, fields, created_at)
values ($1, $2, $3, $4, now())
returning created_at;
`

const QUpdateLibraryRecord = `--sql e9b04c71-52d8-4a6f-b1e0-9c3f57a2d816
update %s
set name = $3,
    fields = $4
where id = $1 and user_id = $2;
`

const QDeleteLibraryRecord = `--sql 2a78f3c5-90b1-4e2d-a6c4-d51e08b97f32
delete from %s
where id = $1 and user_id = $2;
`
