package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Donation Matrix API",
        "description": "Level progression and queue allocation engine for the donation matrix",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Matrix",
            "description": "Level progression and cycle bootstrap"
        },
        {
            "name": "Queues",
            "description": "Level queue administration"
        },
        {
            "name": "Donations",
            "description": "Donation lifecycle"
        },
        {
            "name": "Metrics",
            "description": "Operational counters"
        }
    ],
    "paths": {
        "/matrix/progress/{participantId}": {
            "get": {
                "tags": [
                    "Matrix"
                ],
                "summary": "Per-level progress of a participant",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "participantId",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/matrix/upgrades": {
            "post": {
                "tags": [
                    "Matrix"
                ],
                "summary": "Advance a participant one level in position order",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid or out of order upgrade",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AcceptUpgradeRequest"
                        }
                    }
                ]
            }
        },
        "/matrix/cycles": {
            "post": {
                "tags": [
                    "Matrix"
                ],
                "summary": "Seed the first donations of a full level queue",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Queue not full",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/BootstrapCycleRequest"
                        }
                    }
                ]
            }
        },
        "/queues/me": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "Slots held by the caller",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/queues/{level}": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "List the slots of a level",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "level",
                        "type": "integer",
                        "required": true,
                        "enum": [
                            1,
                            2,
                            3
                        ]
                    }
                ]
            }
        },
        "/queues/{level}/stats": {
            "get": {
                "tags": [
                    "Queues"
                ],
                "summary": "Level queue statistics including the next receiver",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "level",
                        "type": "integer",
                        "required": true,
                        "enum": [
                            1,
                            2,
                            3
                        ]
                    }
                ]
            }
        },
        "/queues/{level}/join": {
            "post": {
                "tags": [
                    "Queues"
                ],
                "summary": "Place a participant at a position",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Position occupied or participant already queued",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "level",
                        "type": "integer",
                        "required": true,
                        "enum": [
                            1,
                            2,
                            3
                        ]
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/JoinQueueRequest"
                        }
                    }
                ]
            }
        },
        "/queues/{level}/leave": {
            "delete": {
                "tags": [
                    "Queues"
                ],
                "summary": "Leave a level queue",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "level",
                        "type": "integer",
                        "required": true,
                        "enum": [
                            1,
                            2,
                            3
                        ]
                    }
                ]
            }
        },
        "/queues/{level}/reorder": {
            "patch": {
                "tags": [
                    "Queues"
                ],
                "summary": "Reassign every position of a level",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "level",
                        "type": "integer",
                        "required": true,
                        "enum": [
                            1,
                            2,
                            3
                        ]
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ReorderQueueRequest"
                        }
                    }
                ]
            }
        },
        "/queues/slots/{id}": {
            "delete": {
                "tags": [
                    "Queues"
                ],
                "summary": "Vacate a slot",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/queues/swap": {
            "patch": {
                "tags": [
                    "Queues"
                ],
                "summary": "Swap two participants in every shared level",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SwapPositionsRequest"
                        }
                    }
                ]
            }
        },
        "/donations/to-send": {
            "get": {
                "tags": [
                    "Donations"
                ],
                "summary": "Open donations the caller owes",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer"
                    },
                    {
                        "in": "query",
                        "name": "page_size",
                        "type": "integer"
                    }
                ]
            }
        },
        "/donations/to-receive": {
            "get": {
                "tags": [
                    "Donations"
                ],
                "summary": "Open donations owed to the caller",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer"
                    },
                    {
                        "in": "query",
                        "name": "page_size",
                        "type": "integer"
                    }
                ]
            }
        },
        "/donations/history": {
            "get": {
                "tags": [
                    "Donations"
                ],
                "summary": "Every donation the caller sent or received",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "query",
                        "name": "page",
                        "type": "integer"
                    },
                    {
                        "in": "query",
                        "name": "page_size",
                        "type": "integer"
                    }
                ]
            }
        },
        "/donations/stats": {
            "get": {
                "tags": [
                    "Donations"
                ],
                "summary": "Totals and pending counts of the caller",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/donations/{id}/receipt": {
            "post": {
                "tags": [
                    "Donations"
                ],
                "summary": "Attach a payment receipt",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    },
                    {
                        "in": "body",
                        "name": "payload",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitReceiptRequest"
                        }
                    }
                ]
            }
        },
        "/donations/{id}/confirm": {
            "patch": {
                "tags": [
                    "Donations"
                ],
                "summary": "Confirm receipt of a donation",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Already processed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/donations/{id}/cancel": {
            "patch": {
                "tags": [
                    "Donations"
                ],
                "summary": "Cancel a pending donation",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/donations/{id}/expire": {
            "patch": {
                "tags": [
                    "Donations"
                ],
                "summary": "Expire a pending donation",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "in": "path",
                        "name": "id",
                        "type": "string",
                        "required": true
                    }
                ]
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": [
                    "Metrics"
                ],
                "summary": "Engine and HTTP counters snapshot",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "AcceptUpgradeRequest": {
            "type": "object",
            "required": [
                "participant_id",
                "from_level",
                "to_level"
            ],
            "properties": {
                "participant_id": {
                    "type": "string"
                },
                "from_level": {
                    "type": "integer",
                    "enum": [
                        1,
                        2
                    ]
                },
                "to_level": {
                    "type": "integer",
                    "enum": [
                        2,
                        3
                    ]
                }
            }
        },
        "BootstrapCycleRequest": {
            "type": "object",
            "required": [
                "level"
            ],
            "properties": {
                "level": {
                    "type": "integer",
                    "enum": [
                        1,
                        2,
                        3
                    ]
                },
                "donors_per_receiver": {
                    "type": "integer"
                },
                "amount": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "deadline_days": {
                    "type": "integer"
                }
            }
        },
        "JoinQueueRequest": {
            "type": "object",
            "required": [
                "participant_id",
                "position"
            ],
            "properties": {
                "participant_id": {
                    "type": "string"
                },
                "position": {
                    "type": "integer"
                }
            }
        },
        "ReorderQueueRequest": {
            "type": "object",
            "required": [
                "slots"
            ],
            "properties": {
                "slots": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "slot_id": {
                                "type": "string"
                            },
                            "position": {
                                "type": "integer"
                            }
                        }
                    }
                }
            }
        },
        "SwapPositionsRequest": {
            "type": "object",
            "required": [
                "first_participant_id",
                "second_participant_id"
            ],
            "properties": {
                "first_participant_id": {
                    "type": "string"
                },
                "second_participant_id": {
                    "type": "string"
                }
            }
        },
        "SubmitReceiptRequest": {
            "type": "object",
            "required": [
                "receipt_ref"
            ],
            "properties": {
                "receipt_ref": {
                    "type": "string"
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                },
                "request_id": {
                    "type": "string"
                }
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
