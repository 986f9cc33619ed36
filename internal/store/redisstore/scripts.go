package redisstore

import "github.com/redis/go-redis/v9"

// All scripts take "now" from the caller so every node and test shares one clock source.
// Timestamps are unix milliseconds.

// KEYS: job, due. ARGV: id, data, scheduledAt, retryCount, maxRetries, now
var addScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'data', ARGV[2], 'status', 'pending', 'scheduledAt', ARGV[3],
  'retryCount', ARGV[4], 'maxRetries', ARGV[5], 'createdAt', ARGV[6])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// KEYS: due, processing. ARGV: now, limit, jobKeyPrefix
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local k = ARGV[3] .. id
  if redis.call('EXISTS', k) == 1 then
    redis.call('ZADD', KEYS[2], ARGV[1], id)
    redis.call('HSET', k, 'status', 'processing', 'processedAt', ARGV[1])
    local f = redis.call('HMGET', k, 'data', 'scheduledAt', 'retryCount', 'maxRetries')
    table.insert(out, {id, f[1], f[2], f[3], f[4]})
  end
end
return out
`)

// KEYS: job, processing, completed. ARGV: id, now, result, retentionMs
var completeScript = redis.NewScript(`
if redis.call('ZREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'completed', 'completedAt', ARGV[2], 'result', ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// KEYS: job, processing, due, failed. ARGV: id, now, errMsg, permanent
var failScript = redis.NewScript(`
if redis.call('ZREM', KEYS[2], ARGV[1]) == 0 then
  return false
end
local rc = tonumber(redis.call('HGET', KEYS[1], 'retryCount') or '0')
local mx = tonumber(redis.call('HGET', KEYS[1], 'maxRetries') or '0')
if ARGV[4] == '0' and rc < mx then
  rc = rc + 1
  local delay = 60000
  for i = 1, rc do
    delay = delay * 2
  end
  local at = tonumber(ARGV[2]) + delay
  redis.call('HSET', KEYS[1], 'status', 'pending', 'retryCount', rc, 'scheduledAt', at, 'lastError', ARGV[3])
  redis.call('ZADD', KEYS[3], at, ARGV[1])
else
  redis.call('HSET', KEYS[1], 'status', 'failed', 'failedAt', ARGV[2], 'lastError', ARGV[3])
  redis.call('ZADD', KEYS[4], ARGV[2], ARGV[1])
end
return redis.call('HMGET', KEYS[1], 'data', 'scheduledAt', 'retryCount', 'maxRetries', 'status')
`)

// KEYS: job, due, processing. ARGV: id, now, retentionMs
var cancelScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
  return 0
end
if st ~= 'pending' and st ~= 'processing' then
  return 0
end
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[3], ARGV[1])
redis.call('HSET', KEYS[1], 'status', 'cancelled', 'cancelledAt', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// KEYS: job, due. ARGV: id, data, scheduledAt, retryCount, maxRetries
var replaceScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
  return 'missing'
end
if st ~= 'pending' then
  return st
end
redis.call('HSET', KEYS[1], 'data', ARGV[2], 'scheduledAt', ARGV[3], 'retryCount', ARGV[4], 'maxRetries', ARGV[5])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 'ok'
`)

// KEYS: job, processing, due. ARGV: id, now, errMsg
var releaseScript = redis.NewScript(`
if redis.call('ZREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'pending', 'scheduledAt', ARGV[2], 'lastError', ARGV[3])
redis.call('ZADD', KEYS[3], ARGV[2], ARGV[1])
return 1
`)

// A stale claim spends one retry; a job with none left goes to the failed set.
// KEYS: processing, due, failed. ARGV: claimedBefore, jobKeyPrefix, now
var requeueStaleScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
local requeued, failed = 0, 0
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local k = ARGV[2] .. id
  if redis.call('EXISTS', k) == 1 then
    local rc = tonumber(redis.call('HGET', k, 'retryCount') or '0')
    local mx = tonumber(redis.call('HGET', k, 'maxRetries') or '0')
    if rc < mx then
      redis.call('HSET', k, 'status', 'pending', 'scheduledAt', ARGV[3], 'retryCount', rc + 1,
        'lastError', 'processing timed out')
      redis.call('ZADD', KEYS[2], ARGV[3], id)
      requeued = requeued + 1
    else
      redis.call('HSET', k, 'status', 'failed', 'failedAt', ARGV[3],
        'lastError', 'processing timed out, no retries left')
      redis.call('ZADD', KEYS[3], ARGV[3], id)
      failed = failed + 1
    end
  end
end
return {requeued, failed}
`)

// KEYS: failed, completed. ARGV: failedBefore, completedBefore, jobKeyPrefix
var purgeScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, id in ipairs(ids) do
  redis.call('DEL', ARGV[3] .. id)
end
if #ids > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
end
redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', '(' .. ARGV[2])
return #ids
`)
