package sqlinline

const QCountUsageToday = `--sql 0d94c6e2-5b17-4f80-a3d9-62e8f1b05c43
select count(*)
from usage_events
where user_id = $1
  and event_type = $2
  and created_at >= date_trunc('day', now());
`

const QInsertUsageEvent = `--sql 7b20e5f8-93ad-4c61-b7f5-c4d18a62e090
insert into usage_events (id, user_id, event_type, created_at)
values ($1, $2, $3, now());
`
