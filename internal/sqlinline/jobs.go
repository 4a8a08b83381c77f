// Package sqlinline holds every SQL statement the service executes. Each
// constant starts with a "--sql <uuid>" marker so query log lines can be
// traced back to the exact statement.
package sqlinline

const QEnsureJobArchive = `--sql 7c21a3da-58be-4d50-9d71-4e2b82f7a96c
create table if not exists job_archive (
  id           uuid primary key,
  status       text not null,
  filename     text not null,
  size_bytes   bigint not null,
  prompt       text,
  style_preset text,
  quality      text,
  progress     double precision not null default 0,
  output_ref   text,
  error        text,
  created_at   timestamptz not null,
  updated_at   timestamptz not null,
  archived_at  timestamptz not null default now()
);
`

const QArchiveTerminalJob = `--sql 3f9c6e2b-9a14-4b7e-8c14-f0d2b5a7c3e9
insert into job_archive (
  id, status, filename, size_bytes, prompt, style_preset, quality,
  progress, output_ref, error, created_at, updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
on conflict (id) do update set
  status      = excluded.status,
  progress    = excluded.progress,
  output_ref  = excluded.output_ref,
  error       = excluded.error,
  updated_at  = excluded.updated_at,
  archived_at = now();
`

const QListArchivedJobs = `--sql a1b56c88-2d43-4f0a-b7c2-91e4d8f03a55
select id, status, filename, size_bytes, prompt, style_preset, quality,
       progress, output_ref, error, created_at, updated_at, archived_at
from job_archive
order by archived_at desc
limit $1;
`

const QListArchiveOutputRefsBefore = `--sql 5b8f31cd-7e06-42a9-9d33-c41a6ef28b90
select output_ref
from job_archive
where archived_at < $1 and output_ref is not null;
`

const QPurgeArchivedJobs = `--sql e8d2f7a0-6c3b-4e19-8f4a-b52c90d1e637
delete from job_archive
where archived_at < $1;
`
