package sqlinline

const QEnqueueVideoJob = `--sql 9b444a74-d5a1-4169-9257-8ff80f6d2fb1
insert into video_jobs (id, document_id, user_id, status, created_at, updated_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, 'queued', now(), now())
returning id, status, created_at, updated_at;
`

const QClaimVideoJob = `--sql e9dc77a4-e926-4013-ac9f-216c8248972c
with next_job as (
    select id
    from video_jobs
    where status = 'queued'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update video_jobs
    set status = 'running', updated_at = now()
    where id in (select id from next_job)
    returning id, document_id, user_id, status, created_at, updated_at
)
select * from updated;
`

const QMarkVideoJobSucceeded = `--sql 41839fcf-d9f4-4ff7-9a1b-a841cd6852a1
update video_jobs
set status = 'succeeded',
    video_url = $2::text,
    updated_at = now()
where id = $1::uuid;
`

const QMarkVideoJobFailed = `--sql 6d12afa2-c68e-4d9e-b888-41bab7df1df7
update video_jobs
set status = 'failed',
    failed_stage = $2::text,
    error_message = $3::text,
    updated_at = now()
where id = $1::uuid;
`

const QSelectVideoJobForUser = `--sql 1b0c9353-dec1-4f7c-83be-ad6d042ffc85
select
  id,
  document_id,
  user_id,
  status,
  video_url,
  failed_stage,
  error_message,
  created_at,
  updated_at
from video_jobs
where id = $1::uuid
  and user_id = $2::uuid
limit 1;
`

// Jobs left running by a worker that died are failed once they are older
// than the pipeline timeout plus a grace period.
const QFailAbandonedVideoJobs = `--sql 119940d3-5f34-49e6-b0ae-3d8da7c3e393
update video_jobs
set status = 'failed',
    failed_stage = 'abandoned',
    error_message = 'worker stopped before the run finished',
    updated_at = now()
where status = 'running'
  and updated_at < now() - make_interval(secs => $1::int);
`
