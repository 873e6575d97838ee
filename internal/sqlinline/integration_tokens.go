package sqlinline

const QSelectIntegrationToken = `--sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql 6d4f5660-0f7c-4f73-a1f3-9ab6d5e6c7a3
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QListIntegrationProviders = `--sql 719f8a6b-2e1d-406f-9b0a-98cc8a70fe35
select provider, updated_at
from integration_tokens
order by provider asc;
`

const QDeleteIntegrationToken = `--sql 4882984b-37d3-4c44-a1d3-5b49dfda63bf
delete from integration_tokens
where provider = $1::text;
`
