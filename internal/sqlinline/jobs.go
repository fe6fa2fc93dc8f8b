package sqlinline

const QInsertGenerationJob = `--sql b4e07d13-6a9f-4c58-8b21-e3f6a0c94d75
insert into generation_jobs (id, user_id, prompt, aspect_ratio, duration, scene_id, status, created_at, updated_at)
values ($1, $2, $3, $4, $5, nullif($6, ''), $7, now(), now());
`

const QUpdateGenerationJobStatus = `--sql f82c915a-4d07-4b36-a1e9-07b5d3c68f24
update generation_jobs
set status = $2,
    result_url = coalesce(nullif($3, ''), result_url),
    error_message = coalesce(nullif($4, ''), error_message),
    updated_at = now()
where id = $1;
`

const QListGenerationJobs = `--sql 6c3a82f9-1e50-4d7b-95c8-b20f74a6e913
select id, user_id, prompt, aspect_ratio, duration, coalesce(scene_id::text, ''), status,
       coalesce(result_url, ''), coalesce(error_message, ''), created_at, updated_at
from generation_jobs
where user_id = $1
order by created_at desc
limit $2;
`

const QDeleteTerminalJobsBefore = `--sql 9e51b7d4-08c6-4f3a-bd72-5a1c90e38f67
delete from generation_jobs
where status in ('succeeded', 'failed')
  and updated_at < $1;
`
