package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "Timetable generation and lesson lifecycle engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetable", "description": "Schedule generation and weekly views"},
        {"name": "Lessons", "description": "Lesson lifecycle and makeup booking"},
        {"name": "Progress", "description": "Curriculum progress reporting"}
    ],
    "paths": {
        "/classes/{classId}/schedule/initialize": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Generate and persist a class timetable",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InitializeScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Schedule already exists"},
                    "422": {"description": "Infeasible or inconsistent source data"}
                }
            }
        },
        "/classes/{classId}/schedule": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Weekly timetable of a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Schedule not initialized"}
                }
            }
        },
        "/classes/{classId}/schedule/empty-slots": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Free slots of a class week",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"},
                    {"name": "weekNumber", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/schedule/status": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Generation state of a class schedule",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/schedule/export": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Export the weekly timetable",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/lessons": {
            "get": {
                "tags": ["Lessons"],
                "summary": "List lessons",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "teacher_id", "in": "query", "type": "string"},
                    {"name": "subject_id", "in": "query", "type": "string"},
                    {"name": "academic_year", "in": "query", "type": "string"},
                    {"name": "week_number", "in": "query", "type": "integer"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/status": {
            "patch": {
                "tags": ["Lessons"],
                "summary": "Transition a lesson's lifecycle status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateLessonStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Illegal transition or stale version"}
                }
            }
        },
        "/lessons/status/bulk": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Transition multiple lessons",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkUpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/makeup": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Schedule a makeup lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleMakeupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Slot conflict"}
                }
            }
        },
        "/lessons/{id}/tests": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Attach test information to a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTestInfoRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/tests/{testId}": {
            "delete": {
                "tags": ["Lessons"],
                "summary": "Remove test information from a lesson",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "testId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/lessons/{id}/reminders": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Create a lesson reminder",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReminderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lessons/{id}/reminders/{reminderId}": {
            "delete": {
                "tags": ["Lessons"],
                "summary": "Remove a lesson reminder",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "reminderId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/classes/{classId}/tests": {
            "get": {
                "tags": ["Lessons"],
                "summary": "Upcoming tests of a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/leave-approvals": {
            "post": {
                "tags": ["Lessons"],
                "summary": "Apply an approved teacher leave",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LeaveApprovalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/progress": {
            "get": {
                "tags": ["Progress"],
                "summary": "Curriculum progress of a class",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "InitializeScheduleRequest": {
            "type": "object",
            "properties": {
                "academicYear": {"type": "string"},
                "force": {"type": "boolean"}
            },
            "required": ["academicYear"]
        },
        "UpdateLessonStatusRequest": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["SCHEDULED", "COMPLETED", "ABSENT", "MAKEUP", "CANCELLED"]},
                "version": {"type": "integer"},
                "attendance": {"$ref": "#/definitions/AttendancePayload"},
                "topic": {"type": "string"},
                "notes": {"type": "string"},
                "evaluation": {"type": "integer"}
            },
            "required": ["status", "version"]
        },
        "AttendancePayload": {
            "type": "object",
            "properties": {
                "presentCount": {"type": "integer"},
                "absentCount": {"type": "integer"},
                "totalCount": {"type": "integer"},
                "absentStudentIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "BulkUpdateStatusRequest": {
            "type": "object",
            "properties": {
                "items": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "lessonId": {"type": "string"},
                            "status": {"type": "string"},
                            "version": {"type": "integer"}
                        }
                    }
                }
            }
        },
        "ScheduleMakeupRequest": {
            "type": "object",
            "properties": {
                "weekNumber": {"type": "integer"},
                "dayOfWeek": {"type": "integer"},
                "period": {"type": "integer"}
            },
            "required": ["weekNumber", "dayOfWeek", "period"]
        },
        "CreateTestInfoRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "content": {"type": "string"}
            },
            "required": ["title"]
        },
        "CreateReminderRequest": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "remindAt": {"type": "string"}
            },
            "required": ["message", "remindAt"]
        },
        "LeaveApprovalRequest": {
            "type": "object",
            "properties": {
                "teacherId": {"type": "string"},
                "dateFrom": {"type": "string"},
                "dateTo": {"type": "string"},
                "reason": {"type": "string"}
            },
            "required": ["teacherId", "dateFrom", "dateTo"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
